package domain

import (
	"io"
	"time"

	"github.com/direnv/direnv/v2/pkg/sri"
	"github.com/google/uuid"
)

// Document is one Markdown file of a content Source.
// Path is relative to the source's content directory.
type Document struct {
	Id          uuid.UUID      `json:"id"`
	SourceId    uuid.UUID      `json:"sourceId"`
	Path        string         `json:"path"`
	FrontMatter map[string]any `json:"frontMatter"`
	BodyHash    string         `json:"bodyHash"`
	FirstSeenAt time.Time      `json:"firstSeenAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Title is what the UI shows for a document.
// Falls back to the path for documents with broken front matter.
func (self Document) Title() string {
	if title, ok := self.FrontMatter[FieldTitle].(string); ok && title != "" {
		return title
	}
	return self.Path
}

// HashBody returns the SRI digest of the document's raw bytes.
// The digest keys report staleness: a report made for a different
// hash no longer describes the document.
func HashBody(raw []byte) string {
	hash := sri.NewWriter(io.Discard, sri.SHA256)
	_, _ = hash.Write(raw)
	return hash.Sum().String()
}

// Front matter fields required by the publishing contract.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldPubDate      = "pubDate"
	FieldHeroImage    = "heroImage"
	FieldHeroImageAlt = "heroImageAlt"
)

var RequiredFields = []string{
	FieldTitle,
	FieldDescription,
	FieldPubDate,
	FieldHeroImage,
	FieldHeroImageAlt,
}
