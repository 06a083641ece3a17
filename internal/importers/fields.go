package importers

import (
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateColumn(line int, field, value string) (*time.Time, *errs.Error) {
	if value == "" {
		return nil, nil
	}
	t, ok := parseDate(value)
	if !ok {
		return nil, fieldError(line, field, value, "use YYYY-MM-DD", "invalid date %q", value)
	}
	return &t, nil
}

func intColumn(line int, field, value string) (int, *errs.Error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fieldError(line, field, value, "use a whole number", "%s must be a number", field)
	}
	return n, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "x":
		return true
	}
	return false
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	return canonical.NormalizeList(strings.Split(s, sep))
}

// normalizeISBN strips the ="..." wrapper spreadsheet exports use, plus
// hyphens and spaces.
func normalizeISBN(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, `"`)
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}
