package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRows is returned when a stored row document cannot be decoded.
var ErrMalformedRows = errors.New("malformed row document")

// Kind distinguishes detail tables (feature+key) from main tables (page+name).
type Kind string

const (
	KindDetail Kind = "detail"
	KindMain   Kind = "main"
)

// Target identifies one table. For detail tables Category is the feature and Key
// the table key; for main tables Category is the page and Key the table name.
type Target struct {
	Kind     Kind   `json:"kind"`
	Category string `json:"category"`
	Key      string `json:"key"`
}

// String returns a stable identifier such as "detail:salvage/mithril-ore".
func (t Target) String() string {
	return string(t.Kind) + ":" + t.Category + "/" + t.Key
}

// Table is a named, parsed row collection.
type Table struct {
	Target Target
	Name   string
	Rows   []Row
}

// ParseRows decodes a serialized row array.
func ParseRows(doc []byte) ([]Row, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return []Row{}, nil
	}
	var rows []Row
	if err := json.Unmarshal(doc, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRows, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// MarshalRows encodes rows deterministically.
func MarshalRows(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(rows)
}
