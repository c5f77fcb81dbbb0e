// Package normalize maps source-specific type vocabularies (JSON-Schema
// type/format pairs, SQL column types, decoded PostgREST values) onto the
// canonical contract types, and synthesizes field constraints from the
// bounds each source declares.
package normalize

import (
	"fmt"

	"contractgen/internal/schema"
)

// Canonical types.
const (
	TypeText      = "text"
	TypeInteger   = "integer"
	TypeBigint    = "bigint"
	TypeFloat     = "float"
	TypeDouble    = "double precision"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeDatetime  = "datetime"
	TypeTime      = "time"
	TypeEmail     = "email"
	TypeURL       = "url"
	TypeUUID      = "uuid"
	TypeBytea     = "bytea"
	TypeJSON      = "json"
	TypeArrayBase = "array"
)

// ArrayOf wraps elem as "array[elem]".
func ArrayOf(elem string) string { return TypeArrayBase + "[" + elem + "]" }

// JSONSchema is the subset of a JSON-Schema property the normalizer reads.
// Numeric bounds keep the type they were decoded with so an integer minimum
// renders as 0 and not 0.0.
type JSONSchema struct {
	Type        string
	Format      string
	Description string
	Items       *JSONSchema
	Enum        []any
	MinLength   *int
	MaxLength   *int
	Pattern     string
	Minimum     any
	Maximum     any
}

// Property is a named JSONSchema in declaration order.
type Property struct {
	Name   string
	Schema JSONSchema
}

var formatTypes = map[string]string{
	"date-time": TypeDatetime,
	"date":      TypeDate,
	"time":      TypeTime,
	"email":     TypeEmail,
	"uri":       TypeURL,
	"url":       TypeURL,
	"uuid":      TypeUUID,
	"binary":    TypeBytea,
	"int32":     TypeInteger,
	"int64":     TypeBigint,
	"float":     TypeFloat,
	"double":    TypeDouble,
}

var jsonTypes = map[string]string{
	"string":  TypeText,
	"integer": TypeInteger,
	"number":  TypeFloat,
	"boolean": TypeBoolean,
	"object":  TypeJSON,
}

// JSONType maps a JSON-Schema property to a canonical type.
//
// A known format wins over the base type, so {string, date-time} is datetime
// and {integer, int64} is bigint. Arrays recurse into items; an array with no
// items schema is array[text]. A missing type reads as "string". Unknown
// types, including "null", are text.
func JSONType(s JSONSchema) string {
	typ := s.Type
	if typ == "" {
		typ = "string"
	}
	if typ == TypeArrayBase {
		if s.Items == nil {
			return ArrayOf(TypeText)
		}
		return ArrayOf(JSONType(*s.Items))
	}
	if t, ok := formatTypes[s.Format]; ok && s.Format != "" {
		return t
	}
	if t, ok := jsonTypes[typ]; ok {
		return t
	}
	return TypeText
}

// JSONConstraints derives constraints for one property. required adds
// not_null first; the rest follow in enum, string bounds, numeric bounds
// order. String bounds are only read for string properties and numeric
// bounds only for integer and number properties.
func JSONConstraints(s JSONSchema, required bool) []schema.FieldConstraint {
	out := []schema.FieldConstraint{}
	if required {
		out = append(out, schema.NotNull())
	}
	if s.Enum != nil {
		out = append(out, schema.FieldConstraint{Type: schema.ConstraintEnum, Value: s.Enum})
	}

	typ := s.Type
	if typ == "" {
		typ = "string"
	}
	switch typ {
	case "string":
		if s.MinLength != nil {
			out = append(out, schema.FieldConstraint{Type: schema.ConstraintPattern, Value: fmt.Sprintf("minLength: %d", *s.MinLength)})
		}
		if s.MaxLength != nil {
			out = append(out, schema.FieldConstraint{Type: schema.ConstraintPattern, Value: fmt.Sprintf("maxLength: %d", *s.MaxLength)})
		}
		if s.Pattern != "" {
			out = append(out, schema.FieldConstraint{Type: schema.ConstraintPattern, Value: s.Pattern})
		}
	case "integer", "number":
		if s.Minimum != nil {
			out = append(out, schema.FieldConstraint{Type: schema.ConstraintRange, MinValue: s.Minimum})
		}
		if s.Maximum != nil {
			out = append(out, schema.FieldConstraint{Type: schema.ConstraintRange, MaxValue: s.Maximum})
		}
	}
	return out
}

// JSONFields converts object properties into field definitions.
//
// A property is non-nullable when it appears in required or when the whole
// body is required; such fields carry a not_null constraint.
func JSONFields(props []Property, required []string, bodyRequired bool) []schema.FieldDefinition {
	req := make(map[string]bool, len(required))
	for _, r := range required {
		req[r] = true
	}

	fields := make([]schema.FieldDefinition, 0, len(props))
	for _, p := range props {
		mustHave := req[p.Name] || bodyRequired
		fields = append(fields, schema.FieldDefinition{
			Name:        p.Name,
			DataType:    JSONType(p.Schema),
			Nullable:    !mustHave,
			Description: p.Schema.Description,
			Constraints: JSONConstraints(p.Schema, mustHave),
		})
	}
	return fields
}
