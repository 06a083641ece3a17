package importers

import (
	"strings"
	"testing"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "metadata": {"formatVersion": "1.0", "totalRecords": 999, "userId": "someone-else"},
  "extension": {"ignored": [1, 2, 3]},
  "userBooks": [
    {"id": "ub-1", "book": {"title": "Dune", "isbn13": "9780441013593", "authors": ["Frank Herbert"]}, "status": "completed", "currentPage": 412},
    {"id": "ub-2", "book": {"title": "Emma"}}
  ],
  "wishlistItems": [
    {"book": {"title": "Piranesi"}, "priority": "high", "priceAlert": 9.99}
  ],
  "collections": [
    {"name": "Favourites", "items": [{"userBookId": "ub-2", "sortOrder": 10}, {"userBookId": "ub-1", "sortOrder": 3}]}
  ],
  "readingSessions": [
    {"userBookId": "ub-1", "startPage": 10, "endPage": 40, "pagesRead": 1, "sessionDate": "2024-05-01T00:00:00Z"}
  ]
}`

func TestParse_JSON_AllRecordTypes(t *testing.T) {
	ds, rowErrors, err := Parse(strings.NewReader(sampleExport), canonical.FormatJSON)

	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	assert.Equal(t, 5, ds.Total())

	require.Len(t, ds.UserBooks, 2)
	assert.Equal(t, "9780441013593", ds.UserBooks[0].BookID)
	// no status in the file stays empty so a merge cannot overwrite with it
	assert.Empty(t, ds.UserBooks[1].Status)

	require.Len(t, ds.WishlistItems, 1)
	assert.Equal(t, canonical.PriorityHigh, ds.WishlistItems[0].Priority)

	require.Len(t, ds.Collections, 1)
	assert.Equal(t, []canonical.CollectionItem{
		{UserBookID: "ub-1", SortOrder: 0},
		{UserBookID: "ub-2", SortOrder: 1},
	}, ds.Collections[0].Items)

	require.Len(t, ds.ReadingSessions, 1)
	assert.Equal(t, 31, ds.ReadingSessions[0].PagesRead)

	// metadata is never trusted
	assert.Empty(t, ds.Metadata.UserID)
}

func TestParse_JSON_TypeMismatchIsRecordLevel(t *testing.T) {
	input := `{"userBooks": [
		{"book": {"title": "Good"}},
		{"book": {"title": "Bad"}, "currentPage": "twelve"},
		{"book": {"title": "Also good"}}
	]}`

	ds, rowErrors, err := Parse(strings.NewReader(input), canonical.FormatJSON)

	require.NoError(t, err)
	require.Len(t, ds.UserBooks, 2)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 2, rowErrors[0].Index)
	assert.Equal(t, canonical.RecordUserBook, rowErrors[0].RecordType)
	assert.Equal(t, string(errs.KindValidation), rowErrors[0].Kind)
	assert.Contains(t, rowErrors[0].Field, "currentPage")
}

func TestParse_JSON_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not an object", `[1, 2]`},
		{"truncated", `{"userBooks": [{"book": {"title": "Dune"}}`},
		{"syntax", `{"userBooks": [{"book": }]}`},
		{"array expected", `{"userBooks": {"book": {}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(tt.input), canonical.FormatJSON)
			require.Error(t, err)
			assert.Equal(t, errs.KindParse, errs.KindOf(err))
		})
	}
}

func TestParse_JSON_NullArrays(t *testing.T) {
	ds, _, err := Parse(strings.NewReader(`{"userBooks": null, "collections": []}`), canonical.FormatJSON)

	require.NoError(t, err)
	assert.Equal(t, 0, ds.Total())
}

func TestNewDecoder_UnknownFormat(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("{}"), canonical.Format("xml"))

	require.Error(t, err)
	assert.Equal(t, errs.KindFileFormat, errs.KindOf(err))
}
