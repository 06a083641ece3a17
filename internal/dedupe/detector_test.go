package dedupe

import (
	"testing"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(title, author, isbn13 string) canonical.Book {
	b := canonical.Book{Title: title, ISBN13: isbn13}
	if author != "" {
		b.Authors = []string{author}
	}
	return b
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"日本語", "日本", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Levenshtein([]rune(tt.a), []rune(tt.b)), "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.expected, Levenshtein([]rune(tt.b), []rune(tt.a)), "%q vs %q", tt.b, tt.a)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "the hobbit", Normalize("  The   HOBBIT\t"))
	// decomposed e + combining acute equals the precomposed form
	assert.Equal(t, Normalize("Caf\u00e9"), Normalize("Cafe\u0301"))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", "", 0.8))
	assert.Equal(t, 1.0, Similarity("Dune", "  dune ", 0.8))
	assert.Equal(t, 0.0, Similarity("Dune", "", 0.8))
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting", 0.8), 1e-9)

	// substring lifts a low edit score to the bonus
	assert.Equal(t, 0.8, Similarity("Dune", "Dune Messiah Collector Edition", 0.8))
	// but never lowers a higher one
	assert.InDelta(t, 1-1.0/11.0, Similarity("The Hobbit", "The Hobbit.", 0.8), 1e-9)
}

func TestScore_ExactISBNIgnoresTitleAndAuthor(t *testing.T) {
	d := NewDetector(DefaultConfig())

	score, method := d.Score(book("Dune", "Frank Herbert", "9780441013593"), book("Completely Different", "Someone Else", "9780441013593"))

	assert.Equal(t, 1.0, score)
	assert.Equal(t, canonical.MethodExactKey, method)
}

func TestScore_DisjointBooksBelowThreshold(t *testing.T) {
	d := NewDetector(DefaultConfig())

	score, method := d.Score(book("Dune", "Frank Herbert", ""), book("Pride and Prejudice", "Jane Austen", ""))

	assert.Less(t, score, DefaultConfig().Threshold)
	assert.Equal(t, canonical.MethodFuzzy, method)
}

func TestScore_EmptyTitlesNeverMatch(t *testing.T) {
	d := NewDetector(DefaultConfig())

	score, _ := d.Score(book("", "Anonymous", ""), book("  ", "Anonymous", ""))

	assert.Equal(t, 0.0, score)
}

func TestScore_MissingAuthorsOnBothSides(t *testing.T) {
	d := NewDetector(DefaultConfig())

	score, _ := d.Score(book("Beowulf", "", ""), book("beowulf", "", ""))

	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestFindDuplicates_SortedByScore(t *testing.T) {
	d := NewDetector(Config{})
	existing := []Entry{
		{ID: "far", Book: book("War and Peace", "Leo Tolstoy", "")},
		{ID: "near", Book: book("The Hobbit!", "J.R.R. Tolkien", "")},
		{ID: "isbn", Book: book("Hobbit (Illustrated)", "Tolkien", "9780261102217")},
		{ID: "exact", Book: book("the hobbit", "j.r.r. tolkien", "")},
	}

	matches := d.FindDuplicates(book("The Hobbit", "J.R.R. Tolkien", "9780261102217"), existing)

	require.Len(t, matches, 3)
	assert.Equal(t, "isbn", matches[0].ExistingID)
	assert.Equal(t, canonical.MethodExactKey, matches[0].Method)
	assert.Equal(t, "exact", matches[1].ExistingID)
	assert.InDelta(t, 1.0, matches[1].Score, 1e-9)
	assert.Equal(t, "near", matches[2].ExistingID)
	assert.Less(t, matches[2].Score, 0.99)
	assert.GreaterOrEqual(t, matches[2].Score, 0.8)
}

func TestFindDuplicates_ConfigurableThreshold(t *testing.T) {
	existing := []Entry{{ID: "1", Book: book("The Hobbit", "Tolkien", "")}}
	candidate := book("The Hobit", "Tolkein", "")

	strict := NewDetector(Config{Threshold: 0.99})
	loose := NewDetector(Config{Threshold: 0.5})

	assert.Empty(t, strict.FindDuplicates(candidate, existing))
	assert.Len(t, loose.FindDuplicates(candidate, existing), 1)
}

func TestNewDetector_Defaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), NewDetector(Config{}).Config())
}
