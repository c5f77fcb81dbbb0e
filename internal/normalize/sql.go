package normalize

import (
	"regexp"
	"strings"

	"contractgen/internal/schema"
)

var sqlTypes = map[string]string{
	"integer":   TypeInteger,
	"int":       TypeInteger,
	"bigint":    TypeInteger,
	"smallint":  TypeInteger,
	"tinyint":   TypeInteger,
	"mediumint": TypeInteger,
	"int2":      TypeInteger,
	"int4":      TypeInteger,
	"int8":      TypeInteger,
	"serial":    TypeInteger,
	"bigserial": TypeInteger,

	"real":             TypeFloat,
	"double precision": TypeFloat,
	"double":           TypeFloat,
	"float":            TypeFloat,
	"numeric":          TypeFloat,
	"decimal":          TypeFloat,
	"money":            TypeFloat,
	"float4":           TypeFloat,
	"float8":           TypeFloat,

	"boolean": TypeBoolean,
	"bool":    TypeBoolean,
	"bit":     TypeBoolean,

	"date":                        TypeDate,
	"timestamp":                   TypeDatetime,
	"timestamptz":                 TypeDatetime,
	"timestamp with time zone":    TypeDatetime,
	"timestamp without time zone": TypeDatetime,
	"datetime":                    TypeDatetime,
	"datetime2":                   TypeDatetime,
	"datetimeoffset":              TypeDatetime,
	"smalldatetime":               TypeDatetime,
	"time":                        TypeTime,
	"timetz":                      TypeTime,
	"time with time zone":         TypeTime,
	"time without time zone":      TypeTime,
}

// typeArgs matches a parenthesized length/precision such as "(255)" or
// "(10,2)".
var typeArgs = regexp.MustCompile(`\s*\([^)]*\)`)

// SQLType maps a database column type to a canonical type.
//
// Matching is case-insensitive and ignores length/precision arguments, so
// "VARCHAR(255)" and "NUMERIC(10,2)" resolve like their bare names. A "[]"
// suffix (PostgreSQL arrays, including the "_int4" udt spelling) wraps the
// element type. Anything unlisted, uuid and json included, is text.
func SQLType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(t, "[]") {
		return ArrayOf(SQLType(strings.TrimSuffix(t, "[]")))
	}
	if strings.HasPrefix(t, "_") && len(t) > 1 {
		if _, ok := sqlTypes[t[1:]]; ok {
			return ArrayOf(SQLType(t[1:]))
		}
	}
	t = typeArgs.ReplaceAllString(t, "")
	t = strings.TrimSpace(strings.TrimSuffix(t, " unsigned"))
	if c, ok := sqlTypes[t]; ok {
		return c
	}
	return TypeText
}

// ColumnField converts database column metadata into a field definition.
// NOT NULL columns are non-nullable and carry not_null.
func ColumnField(col schema.ColumnInfo) schema.FieldDefinition {
	f := schema.FieldDefinition{
		Name:        col.Name,
		DataType:    SQLType(col.Type),
		Nullable:    col.Nullable,
		Constraints: []schema.FieldConstraint{},
	}
	if !col.Nullable {
		f.Constraints = append(f.Constraints, schema.NotNull())
	}
	return f
}
