package domain

import (
	"bytes"
	"encoding/json"
)

// FieldValue is one named field of a merged record.
type FieldValue struct {
	Name  string
	Value string
}

// MergedRecord is one output row of a merge: every configured field
// for a single record key. Serialisation preserves the configured
// field order so identical inputs always produce identical bytes.
type MergedRecord struct {
	Key    int
	Fields []FieldValue
}

// MarshalJSON writes the record as a flat object with the fields in
// their configured order. encoding/json randomises map key order, so
// the object is assembled by hand.
func (r MergedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the named field.
func (r MergedRecord) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
