// Package post models the feed posts stored in per-subject archives, and the
// tab-delimited record format the archive files use. A record is one line: an
// envelope (local and UTC dates) followed by the post body, with nested
// structures flattened inline behind presence markers.
package post

import (
	"time"
)

// LinkCard describes a link referenced by a post. When the upstream spider
// managed to fetch the linked page, Captured is true and Title and Content
// hold what it read.
type LinkCard struct {
	URL      string
	CardURL  string
	Captured bool
	Title    string
	Content  string
}

// Body is the content of a post. Card is the link card, if the post carried
// a link. Embedded is the quoted post, if this post quotes another; quoted
// posts nest to arbitrary depth.
type Body struct {
	Author   string
	ID       int64
	Message  string
	Card     *LinkCard
	Embedded *Body
}

// Post is a body wrapped in its envelope: the post's date in the author's
// timezone and in UTC.
type Post struct {
	LocalDate time.Time
	UTCDate   time.Time
	Body      Body
}

// Oldest returns the post with the smallest identifier, which is the resume
// watermark after archiving a batch. ok is false for an empty slice.
func Oldest(posts []Post) (oldest Post, ok bool) {
	for i, p := range posts {
		if i == 0 || p.Body.ID < oldest.Body.ID {
			oldest = p
			ok = true
		}
	}
	return oldest, ok
}
