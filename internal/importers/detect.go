package importers

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// MaxImportBytes is the default upload limit.
const MaxImportBytes int64 = 100 << 20

// SniffLen is how much of a file DetectFormat looks at.
const SniffLen = 4096

// DetectFormat guesses the interchange format from the file name and the first
// bytes of its content. Goodreads exports are recognised by name or by their
// header columns.
func DetectFormat(filename string, head []byte) (canonical.Format, error) {
	head = bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))
	name := strings.ToLower(filepath.Base(filename))

	switch filepath.Ext(name) {
	case ".json":
		return canonical.FormatJSON, nil
	case ".csv":
		if strings.Contains(name, "goodreads") || looksLikeGoodreads(head) {
			return canonical.FormatGoodreads, nil
		}
		return canonical.FormatCSV, nil
	}

	trimmed := bytes.TrimSpace(head)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return canonical.FormatJSON, nil
	}
	if bytes.IndexByte(trimmed, ',') >= 0 && bytes.IndexByte(trimmed, '\n') >= 0 {
		if looksLikeGoodreads(head) {
			return canonical.FormatGoodreads, nil
		}
		return canonical.FormatCSV, nil
	}
	return "", errs.New(errs.KindFileFormat, "cannot determine the format of %q: use .json or .csv", filename)
}

func looksLikeGoodreads(head []byte) bool {
	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}
	h := strings.ToLower(string(firstLine))
	return strings.Contains(h, grExclusiveShelf) || strings.Contains(h, grMyRating)
}

// CheckSize rejects files over limit before anything is parsed. A limit of
// zero or less means MaxImportBytes.
func CheckSize(size, limit int64) error {
	if limit <= 0 {
		limit = MaxImportBytes
	}
	if size > limit {
		e := errs.New(errs.KindFileSize, "file is %d bytes, the limit is %d bytes", size, limit)
		e.Details = map[string]int64{"size": size, "limit": limit}
		return e
	}
	return nil
}

// LimitReader fails with a FileSizeError once more than limit bytes have been
// read. It guards streams whose size is not known up front.
func LimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		limit = MaxImportBytes
	}
	return &limitedReader{r: r, remaining: limit, limit: limit}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, CheckSize(l.limit+1, l.limit)
	}
	// read one byte past the limit so an exact-size file still passes
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, CheckSize(l.limit+1, l.limit)
	}
	return n, err
}
