package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubject_PreservesSpellingAndFoldsIdentity(t *testing.T) {
	upper, err := NewSubject("Bob")
	require.NoError(t, err)
	lower, err := NewSubject("bob")
	require.NoError(t, err)

	assert.Equal(t, "Bob", upper.Name())
	assert.Equal(t, "bob", upper.Key())
	assert.True(t, upper.Equal(lower))
	assert.Equal(t, lower.FileName(), upper.FileName())
	assert.Equal(t, "bob.journal", upper.FileName())
}

func TestNewSubject_FoldsUnicode(t *testing.T) {
	// NFKC maps the full-width form to ASCII before folding.
	wide, err := NewSubject("Ｂｏｂ")
	require.NoError(t, err)
	plain, err := NewSubject("bob")
	require.NoError(t, err)

	assert.True(t, wide.Equal(plain))
	assert.Equal(t, "bob.journal", wide.FileName())
}

func TestNewSubject_RejectsInvalidNames(t *testing.T) {
	tests := []struct {
		name    string
		subject string
	}{
		{name: "empty", subject: ""},
		{name: "whitespace only", subject: "   "},
		{name: "embedded tab", subject: "bo\tb"},
		{name: "embedded newline", subject: "bo\nb"},
		{name: "path separator", subject: "a/b"},
		{name: "backslash", subject: `a\b`},
		{name: "hidden file prefix", subject: ".bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubject(tt.subject)
			assert.Error(t, err)
		})
	}
}
