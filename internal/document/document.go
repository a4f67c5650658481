package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

const (
	// IDField is the key holding the store-assigned identifier
	IDField = "id"
	// ListPositionField is the key holding the display ordering
	ListPositionField = "listPosition"
)

// Document is a position record: a field map carrying "id" and "listPosition"
// plus any domain fields the core never interprets.
type Document map[string]any

// ID returns the document identifier, or "" when unset
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// SetID stamps the identifier
func (d Document) SetID(id string) {
	d[IDField] = id
}

// ListPosition returns the ordering value. Missing or non-numeric values read as 0.
func (d Document) ListPosition() int {
	switch v := d[ListPositionField].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil && !math.IsNaN(f) {
			return int(f)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// SetListPosition stamps the ordering value
func (d Document) SetListPosition(position int) {
	d[ListPositionField] = json.Number(strconv.Itoa(position))
}

// Clone returns a deep copy with every value in its canonical decoded form
func (d Document) Clone() Document {
	out, err := Normalize(d)
	if err != nil {
		// Documents only ever hold JSON values, so this cannot fail for stored data.
		panic(fmt.Sprintf("document: clone: %v", err))
	}
	return out
}

// Marshal encodes the document as JSON
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// Unmarshal decodes a JSON object, keeping numbers as json.Number so prices and
// sizes survive a round trip without float rounding.
func Unmarshal(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode document: not a JSON object")
	}
	return doc, nil
}

// Normalize re-encodes a document so equal content compares equal regardless of
// how the values were originally built.
func Normalize(d Document) (Document, error) {
	if d == nil {
		return Document{}, nil
	}
	data, err := d.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Unmarshal(data)
}
