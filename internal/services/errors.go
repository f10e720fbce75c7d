package services

import "errors"

var (
	ErrSuggestionNotFound = errors.New("merge suggestion not found or already resolved")
	ErrPostNotFound       = errors.New("post not found")
	ErrPostAlreadyMerged  = errors.New("post has already been merged")
	ErrSelfMerge          = errors.New("cannot merge a post into itself")
)
