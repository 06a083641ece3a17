// Package dedupe finds existing records that an incoming record probably
// duplicates.
//
// A shared ISBN-13 is conclusive. Otherwise title and primary author are
// compared with a normalized Levenshtein similarity and combined with
// configurable weights.
package dedupe

import (
	"sort"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// Config holds the scoring parameters. The defaults are empirical.
type Config struct {
	TitleWeight    float64
	AuthorWeight   float64
	Threshold      float64
	SubstringScore float64
}

// DefaultConfig returns 0.7 title, 0.3 author, threshold 0.8, substring 0.8.
func DefaultConfig() Config {
	return Config{
		TitleWeight:    0.7,
		AuthorWeight:   0.3,
		Threshold:      0.8,
		SubstringScore: 0.8,
	}
}

// Entry is an existing record offered for comparison.
type Entry struct {
	ID   string
	Book canonical.Book
}

// Match is an existing record that scored at or above the threshold.
type Match struct {
	ExistingID    string
	ExistingTitle string
	Score         float64
	Method        canonical.DuplicateMethod
}

type Detector struct {
	cfg Config
}

// NewDetector fills zero fields of cfg from DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.TitleWeight == 0 && cfg.AuthorWeight == 0 {
		cfg.TitleWeight, cfg.AuthorWeight = def.TitleWeight, def.AuthorWeight
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.SubstringScore == 0 {
		cfg.SubstringScore = def.SubstringScore
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective parameters.
func (d *Detector) Config() Config { return d.cfg }

// Score compares two books. Books without titles are never fuzzy matches.
func (d *Detector) Score(candidate, existing canonical.Book) (float64, canonical.DuplicateMethod) {
	if candidate.ISBN13 != "" && candidate.ISBN13 == existing.ISBN13 {
		return 1, canonical.MethodExactKey
	}
	if Normalize(candidate.Title) == "" && Normalize(existing.Title) == "" {
		return 0, canonical.MethodFuzzy
	}

	title := Similarity(candidate.Title, existing.Title, d.cfg.SubstringScore)
	author := Similarity(candidate.PrimaryAuthor(), existing.PrimaryAuthor(), d.cfg.SubstringScore)
	return d.cfg.TitleWeight*title + d.cfg.AuthorWeight*author, canonical.MethodFuzzy
}

// FindDuplicates returns every entry scoring at or above the threshold,
// highest score first. Ties keep the order of existing.
func (d *Detector) FindDuplicates(candidate canonical.Book, existing []Entry) []Match {
	var matches []Match
	for _, e := range existing {
		score, method := d.Score(candidate, e.Book)
		if method != canonical.MethodExactKey && score < d.cfg.Threshold {
			continue
		}
		matches = append(matches, Match{
			ExistingID:    e.ID,
			ExistingTitle: e.Book.Title,
			Score:         score,
			Method:        method,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Best returns the highest scoring match, if any.
func (d *Detector) Best(candidate canonical.Book, existing []Entry) (Match, bool) {
	matches := d.FindDuplicates(candidate, existing)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}
