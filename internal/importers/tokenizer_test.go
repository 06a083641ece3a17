package importers

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) ([][]string, []int) {
	t.Helper()
	tok := NewTokenizer(strings.NewReader(input))
	var records [][]string
	var lines []int
	for {
		fields, line, err := tok.ReadRecord()
		if errors.Is(err, io.EOF) {
			return records, lines
		}
		require.NoError(t, err)
		records = append(records, fields)
		lines = append(lines, line)
	}
}

func TestTokenizer_SimpleRecords(t *testing.T) {
	records, lines := readAll(t, "a,b,c\n1,2,3\n")

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, records)
	assert.Equal(t, []int{1, 2}, lines)
}

func TestTokenizer_QuotedFields(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"comma inside quotes", `"Hello, World",x`, []string{"Hello, World", "x"}},
		{"doubled quote", `"She said ""hi""",y`, []string{`She said "hi"`, "y"}},
		{"empty quoted field", `"",z`, []string{"", "z"}},
		{"trailing empty field", `a,`, []string{"a", ""}},
		{"stray quote in unquoted field", `5" floppy,disk`, []string{`5" floppy`, "disk"}},
		{"crlf line ending", "a,b\r\n", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := SplitLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, fields)
		})
	}
}

func TestTokenizer_MultilineFieldKeepsStartLine(t *testing.T) {
	input := "Title,Notes\n\"Dune\",\"line one\nline two\"\n\"Emma\",short\n"

	records, lines := readAll(t, input)

	require.Len(t, records, 3)
	assert.Equal(t, "line one\nline two", records[1][1])
	assert.Equal(t, []int{1, 2, 4}, lines)
}

func TestTokenizer_SkipsBlankLines(t *testing.T) {
	records, lines := readAll(t, "a\n\n\nb\n")

	assert.Equal(t, [][]string{{"a"}, {"b"}}, records)
	assert.Equal(t, []int{1, 4}, lines)
}

func TestTokenizer_StripsBOM(t *testing.T) {
	records, _ := readAll(t, "\uFEFFTitle,Authors\n")

	require.Len(t, records, 1)
	assert.Equal(t, "Title", records[0][0])
}

func TestTokenizer_UnterminatedQuote(t *testing.T) {
	tok := NewTokenizer(strings.NewReader("ok\n\"never closed,\nstill open"))

	_, _, err := tok.ReadRecord()
	require.NoError(t, err)

	_, line, err := tok.ReadRecord()
	require.Error(t, err)
	assert.Equal(t, errs.KindParse, errs.KindOf(err))
	assert.Equal(t, 2, line)
	assert.Contains(t, err.Error(), "line 2")
}

func TestTokenizer_RecordTooLarge(t *testing.T) {
	input := `"` + strings.Repeat("x", MaxRecordBytes+10) + `"`

	_, _, err := NewTokenizer(strings.NewReader(input)).ReadRecord()

	require.Error(t, err)
	assert.Equal(t, errs.KindParse, errs.KindOf(err))
}

func TestSplitLine_Empty(t *testing.T) {
	fields, err := SplitLine("")

	require.NoError(t, err)
	assert.Empty(t, fields)
}
