// Package document holds the documents ("tabs") that evaluations target.
package document

import (
	"errors"
	"time"
)

// DefaultName is used when a document is created without a name.
const DefaultName = "New Tab"

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is one editable script together with its latest evaluation outcome.
type Document struct {
	ID      string `json:"id"`
	Seq     int64  `json:"-"` // creation order, assigned by the repository
	Name    string `json:"name"`
	Content string `json:"content"`
	Active  bool   `json:"active"`
	// Result and Errors hold the latest evaluation only.
	Result    string    `json:"result"`
	Errors    string    `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of d.
func (d *Document) Clone() *Document {
	c := *d
	return &c
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Apply copies the set fields of p onto d and reports whether anything changed.
func (p Patch) Apply(d *Document) bool {
	changed := false
	if p.Name != nil && *p.Name != d.Name {
		d.Name = *p.Name
		changed = true
	}
	if p.Content != nil && *p.Content != d.Content {
		d.Content = *p.Content
		changed = true
	}
	return changed
}
