package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"contractgen/internal/schema"
)

// ValueType infers a canonical type from the first non-null decoded JSON
// value in values. Numbers should be decoded with UseNumber so integers and
// floats stay distinguishable: "1" is integer, "1.0" is float.
//
// Objects are text (json/jsonb columns); arrays take their element type
// from the first element; no non-null value at all yields text.
func ValueType(values []any) string {
	for _, v := range values {
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return TypeBoolean
		case json.Number:
			if isIntegerLiteral(t.String()) {
				return TypeInteger
			}
			return TypeFloat
		case int, int32, int64:
			return TypeInteger
		case float32, float64:
			return TypeFloat
		case map[string]any:
			return TypeText
		case []any:
			return arrayType(t)
		default:
			return TypeText
		}
	}
	return TypeText
}

func arrayType(arr []any) string {
	if len(arr) == 0 {
		return ArrayOf(TypeText)
	}
	switch t := arr[0].(type) {
	case json.Number:
		if isIntegerLiteral(t.String()) {
			return ArrayOf(TypeInteger)
		}
		return ArrayOf(TypeFloat)
	case int, int32, int64:
		return ArrayOf(TypeInteger)
	case float32, float64:
		return ArrayOf(TypeFloat)
	default:
		return ArrayOf(TypeText)
	}
}

func isIntegerLiteral(s string) bool {
	if strings.ContainsAny(s, ".eE") {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// RowFields builds field definitions for sampled rows keyed by column name.
//
// A field is nullable when any row holds null for it or lacks it entirely;
// other fields get not_null. The returned nullable list keeps names order.
func RowFields(names []string, rows []map[string]any) ([]schema.FieldDefinition, []string) {
	fields := make([]schema.FieldDefinition, 0, len(names))
	nullable := []string{}

	for _, name := range names {
		present := make([]any, 0, len(rows))
		hasNull := false
		for _, row := range rows {
			v, ok := row[name]
			if !ok || v == nil {
				hasNull = true
				continue
			}
			present = append(present, v)
		}

		f := schema.FieldDefinition{
			Name:        name,
			DataType:    ValueType(present),
			Nullable:    hasNull,
			Constraints: []schema.FieldConstraint{},
		}
		if hasNull {
			nullable = append(nullable, name)
		} else {
			f.Constraints = append(f.Constraints, schema.NotNull())
		}
		fields = append(fields, f)
	}
	return fields, nullable
}

// Stringify renders a decoded JSON value the way sample rows and profiles
// see it: strings verbatim, numbers as their literal, booleans as
// true/false, null as "", and objects or arrays as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
