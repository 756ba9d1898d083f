package journal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSubject(t *testing.T, name string) Subject {
	t.Helper()
	s, err := NewSubject(name)
	require.NoError(t, err)
	return s
}

func TestEntry_RoundTrip(t *testing.T) {
	bob := mustSubject(t, "Bob")
	ts := time.Date(2026, 1, 15, 9, 30, 0, 123456789, time.UTC)
	date := time.Date(2026, 1, 10, 22, 15, 4, 0, time.UTC)

	tests := []struct {
		name  string
		entry Entry
	}{
		{name: "started without prior", entry: NewStarted(ts, bob, nil)},
		{name: "started with prior", entry: NewStarted(ts, bob, Mark(411004))},
		{name: "finished", entry: NewFinished(ts, bob, Mark(411004), 398211, date)},
		{name: "finished without prior", entry: NewFinished(ts, bob, nil, 398211, date)},
		{name: "abandoned", entry: NewAbandoned(ts, bob, Mark(411004))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseEntry(tt.entry.String())
			require.NoError(t, err)
			assert.Equal(t, tt.entry, parsed)
		})
	}
}

func TestEntry_StringPreservesSubjectCase(t *testing.T) {
	bob := mustSubject(t, "Bob")
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	line := NewStarted(ts, bob, nil).String()
	assert.Equal(t, "2026-01-15T09:30:00Z\tBob\tStarted\tnone\tnone\tnone", line)

	parsed, err := ParseEntry(line)
	require.NoError(t, err)
	assert.Equal(t, "Bob", parsed.Subject.Name())
	assert.Equal(t, "bob", parsed.Subject.Key())
}

func TestEntry_RenderedJournal(t *testing.T) {
	bob := mustSubject(t, "Bob")
	date := time.Date(2026, 1, 10, 22, 15, 4, 0, time.UTC)

	entries := []Entry{
		NewStarted(time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC), bob, nil),
		NewFinished(time.Date(2026, 1, 15, 9, 31, 12, 123456789, time.UTC), bob, nil, 411004, date),
		NewStarted(time.Date(2026, 1, 15, 9, 32, 0, 0, time.UTC), bob, Mark(411004)),
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	g := goldie.New(t)
	g.Assert(t, "journal_render", []byte(b.String()))
}

func TestParseEntry_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "too few fields", line: "2026-01-15T09:30:00Z\tbob\tStarted"},
		{name: "too many fields", line: "2026-01-15T09:30:00Z\tbob\tStarted\tnone\tnone\tnone\textra"},
		{name: "bad timestamp", line: "yesterday\tbob\tStarted\tnone\tnone\tnone"},
		{name: "empty subject", line: "2026-01-15T09:30:00Z\t\tStarted\tnone\tnone\tnone"},
		{name: "unknown kind", line: "2026-01-15T09:30:00Z\tbob\tPaused\tnone\tnone\tnone"},
		{name: "lowercase kind", line: "2026-01-15T09:30:00Z\tbob\tstarted\tnone\tnone\tnone"},
		{name: "non numeric prior", line: "2026-01-15T09:30:00Z\tbob\tStarted\tlots\tnone\tnone"},
		{name: "non numeric new mark", line: "2026-01-15T09:30:00Z\tbob\tFinished\tnone\tlots\t2026-01-10T22:15:04Z"},
		{name: "bad date", line: "2026-01-15T09:30:00Z\tbob\tFinished\tnone\t1\tlast tuesday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntry(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEntry))

			var malformed *MalformedEntryError
			require.ErrorAs(t, err, &malformed)
			assert.NotEmpty(t, malformed.Reason)
		})
	}
}

func TestEntry_Expired(t *testing.T) {
	bob := mustSubject(t, "bob")
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	e := NewStarted(ts, bob, nil)
	ttl := 5 * time.Minute

	assert.False(t, e.Expired(ttl, ts.Add(time.Second)))
	assert.False(t, e.Expired(ttl, ts.Add(5*time.Minute)))
	assert.True(t, e.Expired(ttl, ts.Add(5*time.Minute+time.Nanosecond)))
}

func TestEntry_CompletionOf(t *testing.T) {
	bob := mustSubject(t, "bob")
	upperBob := mustSubject(t, "Bob")
	alice := mustSubject(t, "alice")
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	date := ts.Add(-time.Hour)

	openNoPrior := NewStarted(ts, bob, nil)
	openAt100 := NewStarted(ts, bob, Mark(100))

	tests := []struct {
		name string
		e    Entry
		top  Entry
		want bool
	}{
		{
			name: "finished closes claim at same watermark",
			e:    NewFinished(ts, bob, Mark(100), 90, date),
			top:  openAt100,
			want: true,
		},
		{
			name: "abandoned closes claim at same watermark",
			e:    NewAbandoned(ts, bob, Mark(100)),
			top:  openAt100,
			want: true,
		},
		{
			name: "completion matches claim across case",
			e:    NewFinished(ts, upperBob, Mark(100), 90, date),
			top:  openAt100,
			want: true,
		},
		{
			name: "claim without prior accepts any completion",
			e:    NewFinished(ts, bob, Mark(7), 5, date),
			top:  openNoPrior,
			want: true,
		},
		{
			name: "watermark mismatch is not a completion",
			e:    NewFinished(ts, bob, Mark(99), 90, date),
			top:  openAt100,
			want: false,
		},
		{
			name: "missing prior cannot close a positioned claim",
			e:    NewAbandoned(ts, bob, nil),
			top:  openAt100,
			want: false,
		},
		{
			name: "started never completes anything",
			e:    NewStarted(ts, bob, Mark(100)),
			top:  openAt100,
			want: false,
		},
		{
			name: "other subject does not complete",
			e:    NewFinished(ts, alice, Mark(100), 90, date),
			top:  openAt100,
			want: false,
		},
		{
			name: "nothing completes a finished entry",
			e:    NewAbandoned(ts, bob, Mark(100)),
			top:  NewFinished(ts, bob, Mark(100), 90, date),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.CompletionOf(tt.top))
		})
	}
}

func TestParseKind_RoundTrip(t *testing.T) {
	for _, k := range []Kind{Started, Abandoned, Finished} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}
