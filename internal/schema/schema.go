// Package schema infers structural JSON schemas from sample values.
//
// A Schema only ever grows: merging a sample can add type tags, properties,
// array item shapes and enum candidates, but never removes any of them.
package schema

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EnumThreshold is the length below which a string sample is kept as an
// enum candidate.
const EnumThreshold = 10

// TypeSet is an ordered set of kinds. It encodes as a single string when it
// holds one kind and as an array otherwise.
type TypeSet []Kind

// Has reports whether k is in the set.
func (t TypeSet) Has(k Kind) bool {
	for _, have := range t {
		if have == k {
			return true
		}
	}
	return false
}

// Add appends k unless it is already present.
func (t TypeSet) Add(k Kind) TypeSet {
	if t.Has(k) {
		return t
	}
	return append(t, k)
}

// Equal compares two sets ignoring order.
func (t TypeSet) Equal(other TypeSet) bool {
	if len(t) != len(other) {
		return false
	}
	for _, k := range t {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

func (t TypeSet) MarshalJSON() ([]byte, error) {
	switch len(t) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(string(t[0]))
	}
	return json.Marshal([]Kind(t))
}

func (t *TypeSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeSet{Kind(single)}
		return nil
	}
	var many []Kind
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("schema: type must be a string or an array of strings: %w", err)
	}
	*t = nil
	for _, k := range many {
		*t = t.Add(k)
	}
	return nil
}

// Schema is a structural JSON schema node.
type Schema struct {
	Type       TypeSet            `json:"type,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}

// MarshalJSON keeps empty properties and enum members: their presence records
// that an object or a short string was observed.
func (s Schema) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type       TypeSet             `json:"type,omitempty"`
		Properties *map[string]*Schema `json:"properties,omitempty"`
		Items      *Schema             `json:"items,omitempty"`
		Enum       *[]string           `json:"enum,omitempty"`
	}
	w := wire{Type: s.Type, Items: s.Items}
	if s.Properties != nil {
		w.Properties = &s.Properties
	}
	if s.Enum != nil {
		w.Enum = &s.Enum
	}
	return json.Marshal(w)
}

// Merge folds the sample v into s.
func (s *Schema) Merge(v Value) {
	s.Type = s.Type.Add(v.Kind())

	switch val := v.(type) {
	case Null:
		return
	case Array:
		if s.Items == nil {
			s.Items = &Schema{}
		}
		for _, elem := range val {
			s.Items.Merge(elem)
		}
	case Object:
		if s.Properties == nil {
			s.Properties = make(map[string]*Schema, len(val))
		}
		for _, name := range val.Keys() {
			prop, ok := s.Properties[name]
			if !ok {
				prop = &Schema{}
				s.Properties[name] = prop
			}
			prop.Merge(val[name])
		}
	case String:
		if utf8.RuneCountInString(string(val)) >= EnumThreshold {
			return
		}
		if s.Enum == nil {
			s.Enum = []string{}
		}
		for _, have := range s.Enum {
			if have == string(val) {
				return
			}
		}
		s.Enum = append(s.Enum, string(val))
	}
}

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{
		Type:  append(TypeSet(nil), s.Type...),
		Items: s.Items.Clone(),
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.Clone()
		}
	}
	if s.Enum != nil {
		out.Enum = append([]string{}, s.Enum...)
	}
	return out
}
