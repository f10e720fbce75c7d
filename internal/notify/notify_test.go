package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, Nop{}, b}

	m.Notify(context.Background(), Event{Type: EventSuggestionCreated})
	m.Notify(context.Background(), Event{Type: EventSuggestionExpired, Count: 3})

	assert.Equal(t, []EventType{EventSuggestionCreated, EventSuggestionExpired}, a.Types())
	assert.Equal(t, a.Types(), b.Types())
	assert.Equal(t, int64(3), b.Events[1].Count)
}
