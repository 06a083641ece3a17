package exporters

import (
	"encoding/json"
	"io"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// JSONSerializer writes the full interchange document.
type JSONSerializer struct {
	Indent string
}

func (s JSONSerializer) Serialize(w io.Writer, ds *canonical.Dataset) error {
	out := *ds
	// empty arrays rather than null keep the document shape stable
	if out.UserBooks == nil {
		out.UserBooks = []canonical.UserBook{}
	}
	if out.WishlistItems == nil {
		out.WishlistItems = []canonical.WishlistItem{}
	}
	if out.Collections == nil {
		out.Collections = []canonical.Collection{}
	}
	if out.ReadingSessions == nil {
		out.ReadingSessions = []canonical.ReadingSession{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if s.Indent != "" {
		enc.SetIndent("", s.Indent)
	}
	return enc.Encode(out)
}

func (JSONSerializer) ContentType() string { return "application/json" }

func (JSONSerializer) Extension() string { return "json" }
