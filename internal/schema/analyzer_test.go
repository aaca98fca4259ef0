package schema

import (
	"context"
	"encoding/json"
	"testing"

	probeerrors "github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/report"
)

const sampleSchema = `{
  "types": [
    {"name": "Person", "kind": "OBJECT", "fields": [
      {"name": "id", "type": {"name": null, "kind": "NON_NULL", "ofType": {"name": "ID", "kind": "SCALAR", "ofType": null}}},
      {"name": "custom_score", "type": {"name": "Int", "kind": "SCALAR", "ofType": null}},
      {"name": "favoriteCustomColor", "type": {"name": "Color", "kind": "ENUM", "ofType": null}},
      {"name": "tags", "type": {"name": null, "kind": "NON_NULL", "ofType": {"name": null, "kind": "LIST", "ofType": {"name": "Tag", "kind": "OBJECT", "ofType": null}}}},
      {"name": "companyConnection", "type": {"name": "Company", "kind": "OBJECT", "ofType": null}},
      {"name": "opportunities", "type": {"name": "OpportunityConnection", "kind": "OBJECT", "ofType": null}},
      {"name": "custom_links", "type": {"name": null, "kind": "LIST", "ofType": {"name": "Link", "kind": "OBJECT", "ofType": null}}}
    ]},
    {"name": "String", "kind": "SCALAR", "fields": null},
    {"name": "Color", "kind": "ENUM", "fields": null},
    {"name": "String", "kind": "SCALAR", "fields": null},
    {"name": "Mystery", "kind": "SOMETHING_NEW", "fields": []}
  ]
}`

func loadSample(t *testing.T) *Graph {
	t.Helper()
	var g Graph
	if err := json.Unmarshal([]byte(sampleSchema), &g); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	return &g
}

type fakeGraphQL struct {
	payload string
	err     error
}

func (f *fakeGraphQL) Request(ctx context.Context, doc string, vars map[string]interface{}, out interface{}) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

// =============================================================================
// Kind Tests
// =============================================================================

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"SCALAR", Scalar},
		{"OBJECT", Object},
		{"INTERFACE", Interface},
		{"UNION", Union},
		{"ENUM", Enum},
		{"INPUT_OBJECT", InputObject},
		{"LIST", List},
		{"NON_NULL", NonNull},
		{"scalar", Scalar},
		{"WHATEVER", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKind_JSON(t *testing.T) {
	var refs []TypeRef
	if err := json.Unmarshal([]byte(`[{"kind":"LIST"},{"kind":null},{"kind":"ODD"}]`), &refs); err != nil {
		t.Fatal(err)
	}
	if refs[0].Kind != List || refs[1].Kind != KindUnknown || refs[2].Kind != KindUnknown {
		t.Errorf("kinds = %v %v %v", refs[0].Kind, refs[1].Kind, refs[2].Kind)
	}

	b, _ := json.Marshal(InputObject)
	if string(b) != `"INPUT_OBJECT"` {
		t.Errorf("Marshal = %s", b)
	}
	if Kind(99).String() != "UNKNOWN" {
		t.Error("out of range kinds should print UNKNOWN")
	}
}

func TestTypeRef_Helpers(t *testing.T) {
	ref := &TypeRef{Kind: NonNull, OfType: &TypeRef{Kind: List, OfType: &TypeRef{Name: "Tag", Kind: Object}}}

	if ref.StripNonNull().Kind != List {
		t.Error("StripNonNull should expose the LIST")
	}
	if ref.Named() != "Tag" {
		t.Errorf("Named() = %q", ref.Named())
	}

	var nilRef *TypeRef
	if nilRef.Named() != "" || nilRef.StripNonNull() != nil {
		t.Error("nil refs should be safe")
	}
}

// =============================================================================
// Analyze Tests
// =============================================================================

func TestAnalyze_CustomFields(t *testing.T) {
	a := Analyze(loadSample(t))

	if len(a.CustomFields) != 3 {
		t.Fatalf("CustomFields = %v, want 3 entries", a.CustomFields)
	}
	if got := a.CustomFields["Person.custom_score"]; got.Type != "Int" || got.Kind != "SCALAR" {
		t.Errorf("custom_score = %+v", got)
	}
	if got := a.CustomFields["Person.favoriteCustomColor"]; got.Type != "Color" || got.Kind != "ENUM" {
		t.Errorf("favoriteCustomColor = %+v", got)
	}
	if got := a.CustomFields["Person.custom_links"]; got.Type != "Link" || got.Kind != "LIST" {
		t.Errorf("custom_links = %+v", got)
	}
}

func TestAnalyze_Relationships(t *testing.T) {
	a := Analyze(loadSample(t))

	tests := []struct {
		key    string
		target string
		rel    string
	}{
		{"Person.tags", "Tag", OneToMany},
		{"Person.custom_links", "Link", OneToMany},
		{"Person.companyConnection", "Company", Connection},
		{"Person.opportunities", "OpportunityConnection", Connection},
	}

	if len(a.Relationships) != len(tests) {
		t.Errorf("Relationships = %v, want %d entries", a.Relationships, len(tests))
	}
	for _, tt := range tests {
		got, ok := a.Relationships[tt.key]
		if !ok {
			t.Errorf("missing relationship %s", tt.key)
			continue
		}
		if got.TargetType != tt.target || got.RelationType != tt.rel {
			t.Errorf("%s = %+v, want %s/%s", tt.key, got, tt.target, tt.rel)
		}
	}
	if _, ok := a.Relationships["Person.id"]; ok {
		t.Error("scalar fields are not relationships")
	}
}

func TestAnalyze_DataTypes(t *testing.T) {
	a := Analyze(loadSample(t))

	want := []string{"String", "Color"}
	if len(a.DataTypes) != len(want) {
		t.Fatalf("DataTypes = %v, want %v", a.DataTypes, want)
	}
	for i := range want {
		if a.DataTypes[i] != want[i] {
			t.Errorf("DataTypes[%d] = %q, want %q", i, a.DataTypes[i], want[i])
		}
	}
}

func TestAnalyze_DataTypesSkipsUnnamed(t *testing.T) {
	g := &Graph{Types: []TypeDef{
		{Name: "", Kind: Scalar},
		{Name: "Int", Kind: Scalar},
		{Name: "", Kind: Enum},
	}}

	a := Analyze(g)
	if len(a.DataTypes) != 1 || a.DataTypes[0] != "Int" {
		t.Errorf("DataTypes = %q, want [Int]", a.DataTypes)
	}
}

func TestAnalyze_Version(t *testing.T) {
	v1 := Analyze(loadSample(t)).SchemaVersion
	v2 := Analyze(loadSample(t)).SchemaVersion
	if v1 != v2 || len(v1) != len("sha256:")+12 {
		t.Errorf("versions = %q, %q", v1, v2)
	}

	changed := loadSample(t)
	changed.Types[0].Fields = changed.Types[0].Fields[:1]
	if Analyze(changed).SchemaVersion == v1 {
		t.Error("a schema change should change the version")
	}
}

func TestAnalyze_Nil(t *testing.T) {
	a := Analyze(nil)
	assertEmpty(t, a)
}

// =============================================================================
// Analyzer Tests
// =============================================================================

func TestAnalyzer_Run(t *testing.T) {
	a := NewAnalyzer(&fakeGraphQL{payload: `{"__schema":` + sampleSchema + `}`}, nil)

	got := a.Run(context.Background())
	if len(got.CustomFields) != 3 || len(got.DataTypes) != 2 {
		t.Errorf("analysis = %+v", got)
	}
}

func TestAnalyzer_RunDegrades(t *testing.T) {
	tests := []struct {
		name string
		gql  *fakeGraphQL
	}{
		{"transport", &fakeGraphQL{err: probeerrors.NewNetworkError("u", "request", nil)}},
		{"graphql error", &fakeGraphQL{err: probeerrors.NewGraphQLError("u", "graphql", "introspection disabled")}},
		{"missing schema", &fakeGraphQL{payload: `{"__schema":null}`}},
		{"no types", &fakeGraphQL{payload: `{"__schema":{"types":[]}}`}},
		{"malformed", &fakeGraphQL{payload: `{"__schema":{"types":"nope"}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.gql, nil).Run(context.Background())
			assertEmpty(t, a)
		})
	}
}

func assertEmpty(t *testing.T, a report.SchemaAnalysis) {
	t.Helper()
	if a.CustomFields == nil || len(a.CustomFields) != 0 {
		t.Errorf("CustomFields = %v, want empty map", a.CustomFields)
	}
	if a.Relationships == nil || len(a.Relationships) != 0 {
		t.Errorf("Relationships = %v, want empty map", a.Relationships)
	}
	if a.DataTypes == nil || len(a.DataTypes) != 0 {
		t.Errorf("DataTypes = %v, want empty slice", a.DataTypes)
	}
	if a.SchemaVersion != "unknown" {
		t.Errorf("SchemaVersion = %q, want unknown", a.SchemaVersion)
	}
}
