// Package schema introspects the GraphQL schema and classifies its fields.
package schema

import (
	"encoding/json"
	"strings"
)

// Kind is the closed set of GraphQL type kinds.
type Kind int

const (
	KindUnknown Kind = iota
	Scalar
	Object
	Interface
	Union
	Enum
	InputObject
	List
	NonNull
)

var kindNames = [...]string{
	KindUnknown: "UNKNOWN",
	Scalar:      "SCALAR",
	Object:      "OBJECT",
	Interface:   "INTERFACE",
	Union:       "UNION",
	Enum:        "ENUM",
	InputObject: "INPUT_OBJECT",
	List:        "LIST",
	NonNull:     "NON_NULL",
}

// String returns the introspection spelling of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind maps an introspection kind name to a Kind. Unrecognized names
// yield KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == strings.ToUpper(s) {
			return Kind(k)
		}
	}
	return KindUnknown
}

// UnmarshalJSON accepts the kind as a string. null decodes to KindUnknown.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*k = KindUnknown
		return nil
	}
	*k = ParseKind(*s)
	return nil
}

// MarshalJSON writes the kind as its introspection name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// TypeRef is a possibly wrapped reference to a named type.
type TypeRef struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	OfType *TypeRef `json:"ofType"`
}

// StripNonNull returns the reference with any NON_NULL wrappers removed.
func (t *TypeRef) StripNonNull() *TypeRef {
	for t != nil && t.Kind == NonNull {
		t = t.OfType
	}
	return t
}

// Named returns the innermost named type, or "" when the chain ends early.
func (t *TypeRef) Named() string {
	for t != nil {
		if t.Name != "" {
			return t.Name
		}
		t = t.OfType
	}
	return ""
}

// Field is a field of an object, interface or input type.
type Field struct {
	Name string   `json:"name"`
	Type *TypeRef `json:"type"`
}

// TypeDef is one entry of the schema's type list.
type TypeDef struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Fields []Field `json:"fields"`
}

// Graph is the introspected schema.
type Graph struct {
	Types []TypeDef `json:"types"`
}
