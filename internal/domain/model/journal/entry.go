// Package journal implements the append-only work journal that coordinates
// resumable backfill runs. Each subject owns one tab-delimited journal file;
// entries are immutable facts (an attempt started, finished, or was
// abandoned) and the current state of a subject is recovered by replaying
// its entries. Nothing in this package touches the filesystem; persistence
// lives in the repository layer.
package journal

import (
	"strconv"
	"strings"
	"time"
)

// Watermark is a post identifier used as a resume point. Backfill walks
// history from newest to oldest, so the watermark of a subject is the oldest
// post identifier reached so far.
type Watermark int64

// Mark returns a pointer to w. Entry fields use *Watermark because a missing
// watermark ("no prior progress") is meaningful and distinct from zero.
func Mark(v int64) *Watermark {
	w := Watermark(v)
	return &w
}

// nullToken is written in place of an absent watermark or date.
const nullToken = "none"

// Kind discriminates journal entries.
type Kind int

const (
	// Started records that a run claimed the subject.
	Started Kind = iota
	// Abandoned records that a run released the subject without progress.
	Abandoned
	// Finished records that a run completed a batch and moved the watermark.
	Finished
)

var kindNames = map[Kind]string{
	Started:   "Started",
	Abandoned: "Abandoned",
	Finished:  "Finished",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a journal field back to its Kind. The match is exact; an
// unknown name means the line did not come from this writer.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, &MalformedEntryError{Line: s, Reason: "unknown entry kind"}
}

// Entry is one immutable journal record. Timestamp is always UTC. Prior is
// the watermark the run resumed from (nil on a first run). Next and NextDate
// are set only on Finished entries: the oldest post identifier of the
// completed batch and its UTC date, which together become the resume point
// for the next run.
type Entry struct {
	Timestamp time.Time
	Subject   Subject
	Kind      Kind
	Prior     *Watermark
	Next      *Watermark
	NextDate  *time.Time
}

// NewStarted builds a Started entry claiming the subject at prior.
func NewStarted(now time.Time, subject Subject, prior *Watermark) Entry {
	return Entry{Timestamp: now.UTC(), Subject: subject, Kind: Started, Prior: prior}
}

// NewFinished builds a Finished entry recording that the batch reaching next
// (dated nextDate) completed a run resumed from prior.
func NewFinished(now time.Time, subject Subject, prior *Watermark, next Watermark, nextDate time.Time) Entry {
	d := nextDate.UTC()
	return Entry{
		Timestamp: now.UTC(),
		Subject:   subject,
		Kind:      Finished,
		Prior:     prior,
		Next:      &next,
		NextDate:  &d,
	}
}

// NewAbandoned builds an Abandoned entry releasing the subject claimed at
// prior without moving the watermark.
func NewAbandoned(now time.Time, subject Subject, prior *Watermark) Entry {
	return Entry{Timestamp: now.UTC(), Subject: subject, Kind: Abandoned, Prior: prior}
}

// ForSubject reports whether the entry belongs to the given subject,
// matching on folded identity.
func (e Entry) ForSubject(s Subject) bool { return e.Subject.Equal(s) }

// Expired reports whether a claim recorded by this entry has outlived its
// lease. A Started entry older than ttl no longer blocks other runs; the
// process that wrote it is presumed dead.
func (e Entry) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.Timestamp) > ttl
}

// CompletionOf reports whether e closes the open claim recorded by top.
// It does when top is a Started entry, e is itself not a Started entry, both
// name the same subject, and e resumes from the watermark top claimed. A
// claim without a prior watermark is closed by any completion for the
// subject.
func (e Entry) CompletionOf(top Entry) bool {
	if top.Kind != Started || e.Kind == Started {
		return false
	}
	if !e.Subject.Equal(top.Subject) {
		return false
	}
	return top.Prior == nil || (e.Prior != nil && *e.Prior == *top.Prior)
}

// String renders the entry as one journal line: six tab-separated fields in
// fixed order, with "none" standing in for absent values.
func (e Entry) String() string {
	fields := [6]string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Subject.Name(),
		e.Kind.String(),
		markToken(e.Prior),
		markToken(e.Next),
		dateToken(e.NextDate),
	}
	return strings.Join(fields[:], "\t")
}

// ParseEntry decodes one journal line. The format is strict: exactly six
// fields, a parseable UTC timestamp, a known kind, and numeric watermarks.
// Anything else is a MalformedEntryError.
func ParseEntry(line string) (Entry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "expected 6 tab-separated fields, got " + strconv.Itoa(len(fields))}
	}
	ts, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "bad timestamp: " + err.Error()}
	}
	subject, err := NewSubject(fields[1])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "bad subject: " + err.Error()}
	}
	kind, err := ParseKind(fields[2])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "unknown kind " + strconv.Quote(fields[2])}
	}
	prior, err := parseMark(fields[3])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "bad prior watermark: " + err.Error()}
	}
	next, err := parseMark(fields[4])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "bad new watermark: " + err.Error()}
	}
	nextDate, err := parseDate(fields[5])
	if err != nil {
		return Entry{}, &MalformedEntryError{Line: line, Reason: "bad new watermark date: " + err.Error()}
	}
	return Entry{
		Timestamp: ts.UTC(),
		Subject:   subject,
		Kind:      kind,
		Prior:     prior,
		Next:      next,
		NextDate:  nextDate,
	}, nil
}

func markToken(w *Watermark) string {
	if w == nil {
		return nullToken
	}
	return strconv.FormatInt(int64(*w), 10)
}

func parseMark(s string) (*Watermark, error) {
	if s == nullToken {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return Mark(v), nil
}

func dateToken(t *time.Time) string {
	if t == nil {
		return nullToken
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDate(s string) (*time.Time, error) {
	if s == nullToken {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}
