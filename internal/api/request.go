package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// MaxBodySize caps the bytes DecodeJSON will read from a request body.
const MaxBodySize = 1 << 20

// ErrInvalidID is returned by PathID for path values that are not UUIDs.
var ErrInvalidID = errors.New("invalid id")

// BodyError explains why a request body was rejected. Field names the JSON
// field at fault when there is one.
type BodyError struct {
	Field  string
	Reason string
}

func (e *BodyError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DecodeJSON decodes exactly one JSON object from the request body into dst.
// Unknown fields and trailing data are rejected. Errors are *BodyError.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return &BodyError{Reason: "request body is empty"}
	}
	body := http.MaxBytesReader(nil, r.Body, MaxBodySize)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &BodyError{Reason: "request body must contain a single JSON object"}
	}
	return nil
}

func describeDecodeError(err error) *BodyError {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		tooLargeErr *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &BodyError{Reason: "request body is empty"}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &BodyError{Reason: "malformed JSON: unexpected end of input"}
	case errors.As(err, &syntaxErr):
		return &BodyError{Reason: fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset)}
	case errors.As(err, &typeErr):
		return &BodyError{Field: typeErr.Field, Reason: "invalid value, expected " + typeErr.Type.String()}
	case errors.As(err, &tooLargeErr):
		return &BodyError{Reason: fmt.Sprintf("request body exceeds maximum size of %d bytes", tooLargeErr.Limit)}
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &BodyError{Field: strings.Trim(field, `"`), Reason: "unknown field"}
	}
	return &BodyError{Reason: "invalid JSON in request body"}
}

// PathID returns the named path wildcard in canonical UUID form.
func PathID(r *http.Request, name string) (string, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id.String(), nil
}
