// Package catalog maps logical CRM operations to their GraphQL and REST forms.
package catalog

import (
	"errors"
	"fmt"
	"maps"
	"net/url"

	"github.com/samber/lo"
)

// ErrUnknownOperation is returned by Lookup for names the catalog does not hold.
var ErrUnknownOperation = errors.New("unknown operation")

// Kind classifies what an operation does to the remote data.
type Kind string

const (
	Read   Kind = "read"
	Write  Kind = "write"
	Search Kind = "search"
)

// Operation is one logical CRM action with a GraphQL and a REST realization.
// Operations are values; the maps they carry must be treated as read-only.
type Operation struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	GraphQLDocument  string                 `json:"graphqlDocument"`
	GraphQLVariables map[string]interface{} `json:"graphqlVariables,omitempty"`

	RESTMethod string                 `json:"restMethod"`
	RESTPath   string                 `json:"restPath"`
	RESTBody   map[string]interface{} `json:"restBody,omitempty"`
}

// GraphQLEndpoint is the identity used for this operation in GraphQL metrics.
func (o Operation) GraphQLEndpoint() string {
	return "graphql/" + o.Name
}

func (o Operation) clone() Operation {
	o.GraphQLVariables = maps.Clone(o.GraphQLVariables)
	o.RESTBody = maps.Clone(o.RESTBody)
	return o
}

// Catalog is an immutable, ordered name to Operation mapping.
type Catalog struct {
	ops    []Operation
	byName map[string]int
}

// New builds a catalog from ops, preserving their order.
func New(ops ...Operation) (*Catalog, error) {
	c := &Catalog{
		ops:    make([]Operation, 0, len(ops)),
		byName: make(map[string]int, len(ops)),
	}
	for _, op := range ops {
		if op.Name == "" {
			return nil, errors.New("operation name is required")
		}
		if _, dup := c.byName[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name)
		}
		if op.GraphQLDocument == "" || op.RESTMethod == "" || op.RESTPath == "" {
			return nil, fmt.Errorf("operation %q needs both a GraphQL and a REST form", op.Name)
		}
		c.byName[op.Name] = len(c.ops)
		c.ops = append(c.ops, op.clone())
	}
	return c, nil
}

// MustNew is like New but panics on an invalid catalog.
func MustNew(ops ...Operation) *Catalog {
	c, err := New(ops...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the operation registered under name.
func (c *Catalog) Lookup(name string) (Operation, error) {
	i, ok := c.byName[name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return c.ops[i].clone(), nil
}

// Operations returns every operation in catalog order.
func (c *Catalog) Operations() []Operation {
	return lo.Map(c.ops, func(op Operation, _ int) Operation {
		return op.clone()
	})
}

// Names returns the operation names in catalog order.
func (c *Catalog) Names() []string {
	return lo.Map(c.ops, func(op Operation, _ int) string {
		return op.Name
	})
}

// Len returns the number of operations.
func (c *Catalog) Len() int {
	return len(c.ops)
}

// Default returns the six standard CRM operations. sampleID fills the record
// id used by the single-record reads and updates.
func Default(sampleID string) *Catalog {
	if sampleID == "" {
		sampleID = DefaultSampleID
	}
	recordPath := "/rest/people/" + url.PathEscape(sampleID)
	personInput := map[string]interface{}{
		"name": map[string]interface{}{"firstName": "Probe", "lastName": "Contact"},
	}

	return MustNew(
		Operation{
			Name:            "list_contacts",
			Kind:            Read,
			GraphQLDocument: listContactsQuery,
			RESTMethod:      "GET",
			RESTPath:        "/rest/people",
		},
		Operation{
			Name:             "get_contact",
			Kind:             Read,
			GraphQLDocument:  getContactQuery,
			GraphQLVariables: map[string]interface{}{"id": sampleID},
			RESTMethod:       "GET",
			RESTPath:         recordPath,
		},
		Operation{
			Name:             "create_contact",
			Kind:             Write,
			GraphQLDocument:  createContactMutation,
			GraphQLVariables: map[string]interface{}{"input": personInput},
			RESTMethod:       "POST",
			RESTPath:         "/rest/people",
			RESTBody:         personInput,
		},
		Operation{
			Name:             "update_contact",
			Kind:             Write,
			GraphQLDocument:  updateContactMutation,
			GraphQLVariables: map[string]interface{}{"id": sampleID, "input": personInput},
			RESTMethod:       "PATCH",
			RESTPath:         recordPath,
			RESTBody:         personInput,
		},
		Operation{
			Name:            "list_companies",
			Kind:            Read,
			GraphQLDocument: listCompaniesQuery,
			RESTMethod:      "GET",
			RESTPath:        "/rest/companies",
		},
		Operation{
			Name:             "search_all",
			Kind:             Search,
			GraphQLDocument:  searchAllQuery,
			GraphQLVariables: map[string]interface{}{"searchText": "test"},
			RESTMethod:       "GET",
			RESTPath:         "/rest/search?q=test",
		},
	)
}

// DefaultSampleID is the record id used when none is configured.
const DefaultSampleID = "1"
