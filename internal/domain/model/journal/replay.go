package journal

import (
	"time"
)

// Reduce condenses a journal into the entries that still matter. Entries are
// folded onto a stack in file order; an entry that completes the open claim
// on top of the stack pops it before being pushed. The returned tail is in
// stack order, oldest at the bottom.
//
// Abandoned entries survive the reduction alongside the claims they closed
// being popped, so the tail keeps the trail of releases between the last
// Finished entry and the top.
func Reduce(entries []Entry) []Entry {
	stack := make([]Entry, 0, 8)
	for _, e := range entries {
		if n := len(stack); n > 0 && e.CompletionOf(stack[n-1]) {
			stack = stack[:n-1]
		}
		stack = append(stack, e)
	}
	return stack
}

// Replay reduces a subject's entries and resolves its current state at time
// now. Every surviving entry must name the subject the file belongs to;
// a stray entry aborts the replay with a CrossSubjectError before any state
// is derived.
//
// The tail is walked top-down. An unexpired Started entry means the subject
// is in use. An expired Started entry is the residue of a dead run and is
// skipped, which is what lets a crashed run's subject be reclaimed. A
// Finished entry yields the resume point. Abandoned entries are skipped.
// An exhausted tail means no usable state.
func Replay(subject Subject, entries []Entry, ttl time.Duration, now time.Time) (Result, error) {
	tail := Reduce(entries)
	for _, e := range tail {
		if !e.ForSubject(subject) {
			return Result{}, &CrossSubjectError{Want: subject.Key(), Got: e.Subject.Name()}
		}
	}
	for i := len(tail) - 1; i >= 0; i-- {
		e := tail[i]
		switch e.Kind {
		case Started:
			if !e.Expired(ttl, now) {
				return ResultInUse(e), nil
			}
		case Finished:
			return ResultFound(e), nil
		case Abandoned:
			// Released without progress; the answer lies further down.
		}
	}
	return ResultNotFound(subject), nil
}
