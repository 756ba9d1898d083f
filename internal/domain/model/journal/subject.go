package journal

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FileExt is the fixed suffix for per-subject journal files.
const FileExt = ".journal"

// FoldSubject maps a subject name to its canonical identity key: NFKC
// normalization followed by Unicode case folding. Two spellings that differ
// only by case fold to the same key and therefore share one journal file.
func FoldSubject(name string) string {
	return cases.Fold().String(norm.NFKC.String(name))
}

// Subject identifies one unit of work. The original spelling is preserved for
// display and journal entries; identity and file naming use the folded form.
type Subject struct {
	name   string
	folded string
}

// NewSubject validates a subject name and computes its folded identity.
// Names must be non-empty and must stay safe as a single path element and as
// a field in a tab-delimited journal line.
func NewSubject(name string) (Subject, error) {
	if strings.TrimSpace(name) == "" {
		return Subject{}, fmt.Errorf("subject name cannot be empty")
	}
	if strings.ContainsAny(name, "\t\n\r") {
		return Subject{}, fmt.Errorf("subject name %q contains control characters", name)
	}
	folded := FoldSubject(name)
	if strings.ContainsAny(folded, `/\`) || strings.HasPrefix(folded, ".") {
		return Subject{}, fmt.Errorf("subject name %q is not a valid file name", name)
	}
	return Subject{name: name, folded: folded}, nil
}

// Name returns the subject's original, case-preserved spelling.
func (s Subject) Name() string { return s.name }

// Key returns the folded identity key shared by all spellings of the subject.
func (s Subject) Key() string { return s.folded }

// Equal reports whether two subjects share the same folded identity.
func (s Subject) Equal(other Subject) bool { return s.folded == other.folded }

// FileName returns the journal file name for this subject.
func (s Subject) FileName() string { return s.folded + FileExt }

func (s Subject) String() string { return s.name }
