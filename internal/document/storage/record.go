package storage

import (
	"time"

	"github.com/xtal-lab/xtal/internal/document"
)

// record is the persisted form of a document, shared by the file and badger
// backends.
type record struct {
	ID        string    `json:"id" msgpack:"id"`
	Seq       int64     `json:"seq" msgpack:"seq"`
	Name      string    `json:"name" msgpack:"name"`
	Content   string    `json:"content" msgpack:"content"`
	Active    bool      `json:"active" msgpack:"active"`
	Result    string    `json:"result" msgpack:"result"`
	Errors    string    `json:"errors" msgpack:"errors"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

func toRecord(d *document.Document) record {
	return record{
		ID:        d.ID,
		Seq:       d.Seq,
		Name:      d.Name,
		Content:   d.Content,
		Active:    d.Active,
		Result:    d.Result,
		Errors:    d.Errors,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (r record) document() *document.Document {
	return &document.Document{
		ID:        r.ID,
		Seq:       r.Seq,
		Name:      r.Name,
		Content:   r.Content,
		Active:    r.Active,
		Result:    r.Result,
		Errors:    r.Errors,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
