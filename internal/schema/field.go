// Package schema defines the contract documents emitted by contract-gen and
// the field-level building blocks they share.
//
// Three top-level contracts exist, discriminated by ContractType:
//
//   - source       (CSV, JSON, database, Supabase; discriminated by SourceFormat)
//   - destination
//   - transformation
//
// Every type carries both json and yaml tags with identical names so a
// contract renders the same way in either output format.
package schema

// Constraint types.
const (
	ConstraintNotNull    = "not_null"
	ConstraintUnique     = "unique"
	ConstraintRange      = "range"
	ConstraintPattern    = "pattern"
	ConstraintEnum       = "enum"
	ConstraintForeignKey = "foreign_key"
	ConstraintPrimaryKey = "primary_key"
)

// FieldConstraint is one constraint attached to a field. Which of the optional
// members are populated depends on Type:
//
//   - range:       MinValue and/or MaxValue
//   - pattern:     Value (regex or "minLength: N" / "maxLength: N")
//   - enum:        Value (list of allowed values)
//   - foreign_key: ReferredTable, ReferredColumn
type FieldConstraint struct {
	Type           string `json:"type" yaml:"type" validate:"oneof=not_null unique range pattern enum foreign_key primary_key"`
	Value          any    `json:"value,omitempty" yaml:"value,omitempty"`
	MinValue       any    `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue       any    `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	ReferredTable  string `json:"referred_table,omitempty" yaml:"referred_table,omitempty"`
	ReferredColumn string `json:"referred_column,omitempty" yaml:"referred_column,omitempty"`
}

// FieldProfile summarizes the sampled values of one field.
type FieldProfile struct {
	NullCount      int     `json:"null_count" yaml:"null_count" validate:"gte=0"`
	NullPercentage float64 `json:"null_percentage" yaml:"null_percentage" validate:"gte=0,lte=100"`
	DistinctCount  int     `json:"distinct_count" yaml:"distinct_count" validate:"gte=0"`
	MinValue       any     `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue       any     `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	SampleValues   []any   `json:"sample_values" yaml:"sample_values"`
}

// FieldDefinition describes one column or property.
type FieldDefinition struct {
	Name        string            `json:"name" yaml:"name" validate:"required"`
	DataType    string            `json:"data_type" yaml:"data_type" validate:"required"`
	Nullable    bool              `json:"nullable" yaml:"nullable"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints []FieldConstraint `json:"constraints" yaml:"constraints" validate:"dive"`
	Profiling   *FieldProfile     `json:"profiling,omitempty" yaml:"profiling,omitempty"`
}

// NewField returns a nullable field with no constraints.
func NewField(name, dataType string) FieldDefinition {
	return FieldDefinition{
		Name:        name,
		DataType:    dataType,
		Nullable:    true,
		Constraints: []FieldConstraint{},
	}
}

// HasConstraint reports whether f carries a constraint of type t.
func (f FieldDefinition) HasConstraint(t string) bool {
	for _, c := range f.Constraints {
		if c.Type == t {
			return true
		}
	}
	return false
}

// NotNull returns a not_null constraint.
func NotNull() FieldConstraint { return FieldConstraint{Type: ConstraintNotNull} }

// SchemaInfo is the field list extracted from a table or API body.
type SchemaInfo struct {
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}

// EndpointInfo describes one OpenAPI operation.
type EndpointInfo struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Summary string            `json:"summary" yaml:"summary"`
	Fields  []FieldDefinition `json:"fields,omitempty" yaml:"fields,omitempty"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// SourceAnalysisResult is the output of a file analyzer.
//
// Delimiter and HasHeader are only set for CSV.
type SourceAnalysisResult struct {
	FileType      string                  `json:"file_type" yaml:"file_type"`
	Encoding      string                  `json:"encoding" yaml:"encoding"`
	Delimiter     string                  `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	HasHeader     *bool                   `json:"has_header,omitempty" yaml:"has_header,omitempty"`
	TotalRows     int                     `json:"total_rows" yaml:"total_rows"`
	FieldProfiles map[string]FieldProfile `json:"field_profiles" yaml:"field_profiles"`
	SampleFields  []string                `json:"sample_fields" yaml:"sample_fields"`
	SampleData    [][]string              `json:"sample_data" yaml:"sample_data"`
	DataTypes     []string                `json:"data_types" yaml:"data_types"`
	Issues        []string                `json:"issues" yaml:"issues"`
}
