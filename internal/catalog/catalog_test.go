package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestDefault_Operations(t *testing.T) {
	c := Default("")

	want := []string{"list_contacts", "get_contact", "create_contact", "update_contact", "list_companies", "search_all"}
	got := c.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if c.Len() != 6 {
		t.Errorf("Len() = %d, want 6", c.Len())
	}
}

func TestDefault_RESTRoutes(t *testing.T) {
	c := Default("abc")

	tests := []struct {
		name   string
		method string
		path   string
		kind   Kind
	}{
		{"list_contacts", "GET", "/rest/people", Read},
		{"get_contact", "GET", "/rest/people/abc", Read},
		{"create_contact", "POST", "/rest/people", Write},
		{"update_contact", "PATCH", "/rest/people/abc", Write},
		{"list_companies", "GET", "/rest/companies", Read},
		{"search_all", "GET", "/rest/search?q=test", Search},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := c.Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if op.RESTMethod != tt.method || op.RESTPath != tt.path {
				t.Errorf("REST = %s %s, want %s %s", op.RESTMethod, op.RESTPath, tt.method, tt.path)
			}
			if op.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", op.Kind, tt.kind)
			}
			if op.GraphQLDocument == "" {
				t.Error("GraphQLDocument should not be empty")
			}
		})
	}
}

func TestDefault_SampleIDInVariables(t *testing.T) {
	op, err := Default("42").Lookup("get_contact")
	if err != nil {
		t.Fatal(err)
	}
	if op.GraphQLVariables["id"] != "42" {
		t.Errorf("id variable = %v, want 42", op.GraphQLVariables["id"])
	}
	if !strings.Contains(op.GraphQLDocument, "$id: ID!") {
		t.Error("document should declare the id variable")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Default("").Lookup("delete_everything")
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("Lookup() error = %v, want ErrUnknownOperation", err)
	}
	if !strings.Contains(err.Error(), "delete_everything") {
		t.Errorf("error should name the operation: %v", err)
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c := Default("1")

	op, _ := c.Lookup("get_contact")
	op.GraphQLVariables["id"] = "mutated"

	again, _ := c.Lookup("get_contact")
	if again.GraphQLVariables["id"] != "1" {
		t.Error("Lookup() must not expose catalog storage")
	}
}

func TestNew_Validation(t *testing.T) {
	valid := Operation{Name: "a", GraphQLDocument: "query A { a }", RESTMethod: "GET", RESTPath: "/rest/a"}

	tests := []struct {
		name string
		ops  []Operation
	}{
		{"empty name", []Operation{{GraphQLDocument: "q", RESTMethod: "GET", RESTPath: "/"}}},
		{"duplicate", []Operation{valid, valid}},
		{"missing REST", []Operation{{Name: "b", GraphQLDocument: "q"}}},
		{"missing GraphQL", []Operation{{Name: "c", RESTMethod: "GET", RESTPath: "/"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.ops...); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestNew_PreservesOrder(t *testing.T) {
	c, err := New(
		Operation{Name: "z", GraphQLDocument: "q", RESTMethod: "GET", RESTPath: "/z"},
		Operation{Name: "a", GraphQLDocument: "q", RESTMethod: "GET", RESTPath: "/a"},
	)
	if err != nil {
		t.Fatal(err)
	}
	ops := c.Operations()
	if ops[0].Name != "z" || ops[1].Name != "a" {
		t.Errorf("Operations() order = %s, %s", ops[0].Name, ops[1].Name)
	}
}

func TestOperation_GraphQLEndpoint(t *testing.T) {
	if got := (Operation{Name: "list_contacts"}).GraphQLEndpoint(); got != "graphql/list_contacts" {
		t.Errorf("GraphQLEndpoint() = %q", got)
	}
}
