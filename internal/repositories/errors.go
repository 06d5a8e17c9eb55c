package repositories

import "errors"

var (
	// ErrInsertFailed is returned when a new relationship row could not be written
	ErrInsertFailed = errors.New("failed to insert new relationship")
	// ErrUpdateFailed is returned when an existing relationship row could not be written
	ErrUpdateFailed = errors.New("failed to update relationship")
	// ErrRelationshipNotFound is returned when a pair has no row
	ErrRelationshipNotFound = errors.New("relationship not found")
	// ErrRecordNotFound is returned when a record does not exist
	ErrRecordNotFound = errors.New("record not found")
)
