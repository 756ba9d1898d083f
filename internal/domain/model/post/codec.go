package post

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord marks archive lines that do not follow the record
// layout.
var ErrMalformedRecord = errors.New("malformed post record")

// Presence markers. A nested structure is either announced by "some" and
// flattened inline, or replaced by "none". Link card content uses "P"
// (present) or "A" (absent) instead.
const (
	someToken = "some"
	noneToken = "none"

	cardContentPresent = "P"
	cardContentAbsent  = "A"
)

// Record renders the post as one archive line. Free-text fields must not
// carry tabs or newlines; they are flattened to spaces.
func (p Post) Record() string {
	fields := []string{
		p.LocalDate.Format(time.RFC3339Nano),
		p.UTCDate.UTC().Format(time.RFC3339Nano),
	}
	fields = p.Body.appendFields(fields)
	return strings.Join(fields, "\t")
}

func (b Body) appendFields(fields []string) []string {
	fields = append(fields,
		sanitize(b.Author),
		strconv.FormatInt(b.ID, 10),
		sanitize(b.Message),
	)
	if b.Card != nil {
		fields = append(fields, someToken)
		fields = b.Card.appendFields(fields)
	} else {
		fields = append(fields, noneToken)
	}
	if b.Embedded != nil {
		fields = append(fields, someToken)
		fields = b.Embedded.appendFields(fields)
	} else {
		fields = append(fields, noneToken)
	}
	return fields
}

func (c LinkCard) appendFields(fields []string) []string {
	fields = append(fields, sanitize(c.URL), sanitize(c.CardURL))
	if c.Captured {
		fields = append(fields, cardContentPresent, sanitize(c.Title), sanitize(c.Content))
	} else {
		fields = append(fields, cardContentAbsent)
	}
	return fields
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return ' '
		}
		return r
	}, s)
}

// ParseRecord decodes one archive line. All fields must be consumed; a line
// with trailing fields did not come from this writer.
func ParseRecord(line string) (Post, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return Post{}, malformed(line, "missing envelope dates")
	}
	localDate, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Post{}, malformed(line, "bad local date: "+err.Error())
	}
	utcDate, err := time.Parse(time.RFC3339Nano, fields[1])
	if err != nil {
		return Post{}, malformed(line, "bad utc date: "+err.Error())
	}
	body, next, err := parseBody(fields, 2)
	if err != nil {
		return Post{}, fmt.Errorf("%w: %q", err, line)
	}
	if next != len(fields) {
		return Post{}, malformed(line, "trailing fields")
	}
	return Post{LocalDate: localDate, UTCDate: utcDate.UTC(), Body: body}, nil
}

// parseBody reads a flattened body starting at fields[start] and returns the
// next unread position.
func parseBody(fields []string, start int) (Body, int, error) {
	if len(fields) < start+4 {
		return Body{}, 0, fmt.Errorf("%w: truncated body", ErrMalformedRecord)
	}
	author := fields[start]
	id, err := strconv.ParseInt(fields[start+1], 10, 64)
	if err != nil {
		return Body{}, 0, fmt.Errorf("%w: bad post id %q", ErrMalformedRecord, fields[start+1])
	}
	message := fields[start+2]

	body := Body{Author: author, ID: id, Message: message}

	next := start + 4
	switch strings.ToLower(fields[start+3]) {
	case someToken:
		card, n, err := parseCard(fields, next)
		if err != nil {
			return Body{}, 0, err
		}
		body.Card = &card
		next = n
	case noneToken:
	default:
		return Body{}, 0, fmt.Errorf("%w: bad card marker %q", ErrMalformedRecord, fields[start+3])
	}

	if len(fields) < next+1 {
		return Body{}, 0, fmt.Errorf("%w: missing quoted post marker", ErrMalformedRecord)
	}
	switch strings.ToLower(fields[next]) {
	case someToken:
		embedded, n, err := parseBody(fields, next+1)
		if err != nil {
			return Body{}, 0, err
		}
		body.Embedded = &embedded
		next = n
	case noneToken:
		next++
	default:
		return Body{}, 0, fmt.Errorf("%w: bad quoted post marker %q", ErrMalformedRecord, fields[next])
	}

	return body, next, nil
}

// parseCard reads a flattened link card starting at fields[start] and
// returns the next unread position.
func parseCard(fields []string, start int) (LinkCard, int, error) {
	if len(fields) < start+3 {
		return LinkCard{}, 0, fmt.Errorf("%w: truncated link card", ErrMalformedRecord)
	}
	card := LinkCard{URL: fields[start], CardURL: fields[start+1]}

	switch strings.ToUpper(strings.TrimSpace(fields[start+2])) {
	case cardContentPresent:
		if len(fields) < start+5 {
			return LinkCard{}, 0, fmt.Errorf("%w: truncated link card content", ErrMalformedRecord)
		}
		card.Captured = true
		card.Title = fields[start+3]
		card.Content = fields[start+4]
		return card, start + 5, nil
	case cardContentAbsent:
		return card, start + 3, nil
	default:
		return LinkCard{}, 0, fmt.Errorf("%w: bad link card content marker %q", ErrMalformedRecord, fields[start+2])
	}
}

func malformed(line, reason string) error {
	return fmt.Errorf("%w: %s: %q", ErrMalformedRecord, reason, line)
}
