package journal

import (
	"strconv"
	"time"
)

// Status is the outcome of resolving a subject's journal.
type Status int

const (
	// StatusNotFound means the subject has no usable journal state; the
	// caller has claimed it for a first run.
	StatusNotFound Status = iota
	// StatusFound means a previous run finished; the caller has claimed the
	// subject and should resume from the returned watermark.
	StatusFound
	// StatusInUse means another run holds an unexpired claim. Nothing was
	// appended; the caller must back off.
	StatusInUse
	// StatusForcedStart means the caller claimed the subject at an explicit
	// watermark without consulting prior state.
	StatusForcedStart
)

var statusNames = map[Status]string{
	StatusNotFound:    "NotFound",
	StatusFound:       "Found",
	StatusInUse:       "InUse",
	StatusForcedStart: "ForcedStart",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Result reports the resolved state of a subject. Watermark is the resume
// point when one exists: the last finished run's watermark for Found, the
// open claim's watermark for InUse, the forced watermark for ForcedStart.
// LastAccess is the timestamp of the entry that determined the status, and
// LastDate the post date recorded by the last finished run.
type Result struct {
	Status     Status
	Subject    Subject
	Watermark  *Watermark
	LastAccess time.Time
	LastDate   *time.Time
}

// ResultNotFound reports a subject with no recoverable state.
func ResultNotFound(subject Subject) Result {
	return Result{Status: StatusNotFound, Subject: subject}
}

// ResultFound reports the resume point recorded by a Finished entry.
func ResultFound(e Entry) Result {
	return Result{
		Status:     StatusFound,
		Subject:    e.Subject,
		Watermark:  e.Next,
		LastAccess: e.Timestamp,
		LastDate:   e.NextDate,
	}
}

// ResultInUse reports the unexpired claim recorded by a Started entry.
func ResultInUse(e Entry) Result {
	return Result{
		Status:     StatusInUse,
		Subject:    e.Subject,
		Watermark:  e.Prior,
		LastAccess: e.Timestamp,
	}
}

// ResultForced reports a claim taken at an explicit watermark.
func ResultForced(subject Subject, mark Watermark, now time.Time) Result {
	return Result{
		Status:     StatusForcedStart,
		Subject:    subject,
		Watermark:  &mark,
		LastAccess: now.UTC(),
	}
}
