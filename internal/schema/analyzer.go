package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/transport"
)

// IntrospectionQuery fetches every type with its fields, following type
// wrappers three levels deep.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    types {
      name
      kind
      fields(includeDeprecated: true) {
        name
        type {
          name
          kind
          ofType {
            name
            kind
            ofType {
              name
              kind
              ofType {
                name
                kind
              }
            }
          }
        }
      }
    }
  }
}`

const (
	customPrefix   = "custom_"
	customMarker   = "Custom"
	connectionMark = "Connection"

	OneToMany  = "one-to-many"
	Connection = "connection"
)

// Analyzer runs introspection and classifies the result.
type Analyzer struct {
	graphql transport.GraphQL
	log     *logger.Logger
}

// NewAnalyzer creates an analyzer. A nil logger discards output.
func NewAnalyzer(gql transport.GraphQL, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{graphql: gql, log: log.WithComponent("schema")}
}

// Introspect performs the introspection request.
func (a *Analyzer) Introspect(ctx context.Context) (*Graph, error) {
	var out struct {
		Schema *Graph `json:"__schema"`
	}
	if err := a.graphql.Request(ctx, IntrospectionQuery, nil, &out); err != nil {
		return nil, fmt.Errorf("introspection: %w", err)
	}
	if out.Schema == nil || len(out.Schema.Types) == 0 {
		return nil, fmt.Errorf("introspection: response has no schema")
	}
	return out.Schema, nil
}

// Run introspects and analyzes. Any failure degrades to the empty analysis.
func (a *Analyzer) Run(ctx context.Context) report.SchemaAnalysis {
	g, err := a.Introspect(ctx)
	if err != nil {
		a.log.DegradedEvent("schema", err)
		return report.EmptySchemaAnalysis()
	}

	result := Analyze(g)
	a.log.Infof("Schema: %d types, %d custom fields, %d relationships",
		len(g.Types), len(result.CustomFields), len(result.Relationships))
	return result
}

// Analyze classifies every field of g. A field may land in both the custom
// and the relationship bucket.
func Analyze(g *Graph) report.SchemaAnalysis {
	if g == nil {
		return report.EmptySchemaAnalysis()
	}

	result := report.SchemaAnalysis{
		CustomFields:  map[string]report.FieldInfo{},
		Relationships: map[string]report.Relationship{},
		SchemaVersion: Fingerprint(g),
	}

	for _, t := range g.Types {
		for _, f := range t.Fields {
			key := t.Name + "." + f.Name
			if IsCustomField(f.Name) {
				result.CustomFields[key] = fieldInfo(f)
			}
			if rel, ok := Relation(f); ok {
				result.Relationships[key] = rel
			}
		}
	}

	result.DataTypes = lo.Uniq(lo.FilterMap(g.Types, func(t TypeDef, _ int) (string, bool) {
		return t.Name, t.Name != "" && isDataType(t.Kind)
	}))
	return result
}

// IsCustomField reports whether name follows the custom field convention.
func IsCustomField(name string) bool {
	return strings.HasPrefix(name, customPrefix) || strings.Contains(name, customMarker)
}

func fieldInfo(f Field) report.FieldInfo {
	info := report.FieldInfo{Type: "unknown", Kind: KindUnknown.String()}
	if named := f.Type.Named(); named != "" {
		info.Type = named
	}
	if ref := f.Type.StripNonNull(); ref != nil {
		info.Kind = ref.Kind.String()
	}
	return info
}

// Relation classifies f as a relationship. Lists are one-to-many; anything
// named like a connection, by field or by target type, is a connection.
func Relation(f Field) (report.Relationship, bool) {
	target := f.Type.Named()
	if target == "" {
		target = "unknown"
	}

	kind := KindUnknown
	if ref := f.Type.StripNonNull(); ref != nil {
		kind = ref.Kind
	}

	connectionNamed := strings.HasSuffix(f.Name, connectionMark) || strings.HasSuffix(target, connectionMark)

	switch kind {
	case List:
		return report.Relationship{TargetType: target, RelationType: OneToMany}, true
	case Scalar, Object, Interface, Union, Enum, InputObject, NonNull, KindUnknown:
		if connectionNamed {
			return report.Relationship{TargetType: target, RelationType: Connection}, true
		}
		return report.Relationship{}, false
	default:
		return report.Relationship{}, false
	}
}

func isDataType(k Kind) bool {
	switch k {
	case Scalar, Enum:
		return true
	case Object, Interface, Union, InputObject, List, NonNull, KindUnknown:
		return false
	default:
		return false
	}
}

// Fingerprint derives a short version string from the type and field names,
// so two runs against an unchanged schema report the same version.
func Fingerprint(g *Graph) string {
	h := sha256.New()
	for _, t := range g.Types {
		fmt.Fprintf(h, "%s:%s{", t.Name, t.Kind)
		for _, f := range t.Fields {
			fmt.Fprintf(h, "%s:%s,", f.Name, f.Type.Named())
		}
		h.Write([]byte("}"))
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))[:12]
}
