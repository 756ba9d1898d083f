package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEntry marks journal lines this writer could not have
	// produced. Replay stops rather than guess at corrupt state.
	ErrMalformedEntry = errors.New("malformed journal entry")

	// ErrCrossSubject marks entries found in the wrong subject's file.
	// The journal has been corrupted externally; no automatic repair.
	ErrCrossSubject = errors.New("journal entry for wrong subject")
)

// MalformedEntryError reports a journal line that failed to parse, with the
// offending line and the first reason found.
type MalformedEntryError struct {
	Line   string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed journal entry %q: %s", e.Line, e.Reason)
}

func (e *MalformedEntryError) Unwrap() error { return ErrMalformedEntry }

// CrossSubjectError reports an entry whose subject does not match the
// journal file it was read from.
type CrossSubjectError struct {
	Want string // folded identity of the file's subject
	Got  string // subject named by the stray entry
}

func (e *CrossSubjectError) Error() string {
	return fmt.Sprintf("journal for %q contains entry for %q", e.Want, e.Got)
}

func (e *CrossSubjectError) Unwrap() error { return ErrCrossSubject }
