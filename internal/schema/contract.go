package schema

// Contract types.
const (
	ContractSource         = "source"
	ContractDestination    = "destination"
	ContractTransformation = "transformation"
)

// Source formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatDatabase = "database"
	FormatSupabase = "supabase"
)

// Contract is implemented by the three top-level documents.
type Contract interface {
	// Kind returns the contract_type discriminant.
	Kind() string
	// ID returns the source_id, destination_id or transformation_id.
	ID() string
}

// SourceContract is implemented by every source variant.
type SourceContract interface {
	Contract
	Format() string
	Base() *SourceBase
}

// ---- quality ----

// QualityExpectation holds thresholds a later run may check against.
type QualityExpectation struct {
	MaxNullPercentage *float64 `json:"max_null_percentage,omitempty" yaml:"max_null_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinDistinctCount  *int     `json:"min_distinct_count,omitempty" yaml:"min_distinct_count,omitempty" validate:"omitempty,gte=0"`
	AllowedValues     []any    `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
}

// QualityObservation is what an analysis actually saw.
type QualityObservation struct {
	TotalRows         int                     `json:"total_rows" yaml:"total_rows" validate:"gte=0"`
	Expectation       *QualityExpectation     `json:"expectation,omitempty" yaml:"expectation,omitempty"`
	ObservedProfiling map[string]FieldProfile `json:"observed_profiling" yaml:"observed_profiling" validate:"dive"`
	Issues            []string                `json:"issues" yaml:"issues"`
	SampleData        [][]string              `json:"sample_data" yaml:"sample_data"`
}

// NewQuality returns an observation with non-nil collections.
func NewQuality(totalRows int) QualityObservation {
	return QualityObservation{
		TotalRows:         totalRows,
		ObservedProfiling: map[string]FieldProfile{},
		Issues:            []string{},
		SampleData:        [][]string{},
	}
}

// ---- source contracts ----

// SourceSchema lists the fields of a source.
type SourceSchema struct {
	Fields []FieldDefinition `json:"fields" yaml:"fields" validate:"unique=Name,dive"`
}

// SourceBase carries the members shared by all source variants.
type SourceBase struct {
	ContractType string             `json:"contract_type" yaml:"contract_type" validate:"eq=source"`
	SourceFormat string             `json:"source_format" yaml:"source_format" validate:"oneof=csv json database supabase"`
	SourceID     string             `json:"source_id" yaml:"source_id" validate:"required"`
	Schema       SourceSchema       `json:"schema" yaml:"schema"`
	Quality      QualityObservation `json:"quality" yaml:"quality"`
	Metadata     map[string]any     `json:"metadata" yaml:"metadata"`
}

// Kind implements Contract.
func (b *SourceBase) Kind() string { return b.ContractType }

// ID implements Contract.
func (b *SourceBase) ID() string { return b.SourceID }

// Format returns the source_format discriminant.
func (b *SourceBase) Format() string { return b.SourceFormat }

// Base returns b.
func (b *SourceBase) Base() *SourceBase { return b }

func newSourceBase(format, id string, fields []FieldDefinition, q QualityObservation, md map[string]any) SourceBase {
	if md == nil {
		md = map[string]any{}
	}
	if fields == nil {
		fields = []FieldDefinition{}
	}
	return SourceBase{
		ContractType: ContractSource,
		SourceFormat: format,
		SourceID:     id,
		Schema:       SourceSchema{Fields: fields},
		Quality:      q,
		Metadata:     md,
	}
}

// CSVSource describes a delimited text file.
type CSVSource struct {
	SourceBase `yaml:",inline"`
	SourcePath string `json:"source_path" yaml:"source_path" validate:"required"`
	Encoding   string `json:"encoding" yaml:"encoding"`
	Delimiter  string `json:"delimiter" yaml:"delimiter" validate:"required"`
	HasHeader  bool   `json:"has_header" yaml:"has_header"`
}

// NewCSVSource builds a CSV source contract.
func NewCSVSource(id, path string, fields []FieldDefinition, q QualityObservation, md map[string]any) *CSVSource {
	return &CSVSource{
		SourceBase: newSourceBase(FormatCSV, id, fields, q, md),
		SourcePath: path,
		Encoding:   "utf-8",
		Delimiter:  ",",
		HasHeader:  true,
	}
}

// JSONSource describes a JSON array or NDJSON file.
type JSONSource struct {
	SourceBase `yaml:",inline"`
	SourcePath string `json:"source_path" yaml:"source_path" validate:"required"`
	Encoding   string `json:"encoding" yaml:"encoding"`
	IsNDJSON   bool   `json:"is_ndjson" yaml:"is_ndjson"`
}

// NewJSONSource builds a JSON source contract.
func NewJSONSource(id, path string, fields []FieldDefinition, q QualityObservation, md map[string]any) *JSONSource {
	return &JSONSource{
		SourceBase: newSourceBase(FormatJSON, id, fields, q, md),
		SourcePath: path,
		Encoding:   "utf-8",
	}
}

// DatabaseSource describes a table, view or query in a relational database.
type DatabaseSource struct {
	SourceBase     `yaml:",inline"`
	DatabaseType   string `json:"database_type" yaml:"database_type" validate:"oneof=postgresql mysql sqlite mssql"`
	SourceType     string `json:"source_type" yaml:"source_type" validate:"oneof=table view query"`
	SourceName     string `json:"source_name" yaml:"source_name" validate:"required"`
	DatabaseSchema string `json:"database_schema,omitempty" yaml:"database_schema,omitempty"`
}

// NewDatabaseSource builds a database source contract.
func NewDatabaseSource(id, dbType, sourceType, name string, fields []FieldDefinition, q QualityObservation, md map[string]any) *DatabaseSource {
	return &DatabaseSource{
		SourceBase:   newSourceBase(FormatDatabase, id, fields, q, md),
		DatabaseType: dbType,
		SourceType:   sourceType,
		SourceName:   name,
	}
}

// SupabaseSource describes a table exposed through PostgREST.
type SupabaseSource struct {
	SourceBase `yaml:",inline"`
	ProjectURL string `json:"project_url" yaml:"project_url" validate:"required"`
	TableName  string `json:"table_name" yaml:"table_name" validate:"required"`
}

// NewSupabaseSource builds a Supabase source contract.
func NewSupabaseSource(id, projectURL, table string, fields []FieldDefinition, q QualityObservation, md map[string]any) *SupabaseSource {
	return &SupabaseSource{
		SourceBase: newSourceBase(FormatSupabase, id, fields, q, md),
		ProjectURL: projectURL,
		TableName:  table,
	}
}

// ---- destination ----

// DestinationSchema lists the fields of a destination.
type DestinationSchema struct {
	Fields []FieldDefinition `json:"fields" yaml:"fields" validate:"dive"`
}

// ValidationRules are the checks a loader should apply before writing.
type ValidationRules struct {
	RequiredFields    []string       `json:"required_fields" yaml:"required_fields"`
	UniqueConstraints []string       `json:"unique_constraints" yaml:"unique_constraints"`
	DataRangeChecks   map[string]any `json:"data_range_checks" yaml:"data_range_checks"`
	FormatValidation  map[string]any `json:"format_validation" yaml:"format_validation"`
}

// DestinationContract describes where data is written.
type DestinationContract struct {
	ContractType    string            `json:"contract_type" yaml:"contract_type" validate:"eq=destination"`
	DestinationID   string            `json:"destination_id" yaml:"destination_id" validate:"required"`
	Schema          DestinationSchema `json:"schema" yaml:"schema"`
	ValidationRules ValidationRules   `json:"validation_rules" yaml:"validation_rules"`
	Metadata        map[string]any    `json:"metadata" yaml:"metadata"`
}

// NewDestination returns an empty destination contract.
func NewDestination(id string, md map[string]any) *DestinationContract {
	if md == nil {
		md = map[string]any{}
	}
	return &DestinationContract{
		ContractType:  ContractDestination,
		DestinationID: id,
		Schema:        DestinationSchema{Fields: []FieldDefinition{}},
		ValidationRules: ValidationRules{
			RequiredFields:    []string{},
			UniqueConstraints: []string{},
			DataRangeChecks:   map[string]any{},
			FormatValidation:  map[string]any{},
		},
		Metadata: md,
	}
}

// Kind implements Contract.
func (d *DestinationContract) Kind() string { return d.ContractType }

// ID implements Contract.
func (d *DestinationContract) ID() string { return d.DestinationID }

// ---- transformation ----

// Transformation types.
const (
	TransformRename    = "rename"
	TransformCast      = "cast"
	TransformFormat    = "format"
	TransformLookup    = "lookup"
	TransformCalculate = "calculate"
	TransformDefault   = "default"
)

// FieldTransformation is applied while moving one field.
type FieldTransformation struct {
	Type       string         `json:"type" yaml:"type" validate:"oneof=rename cast format lookup calculate default"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// FieldMapping maps a destination field to its source. A nil SourceField
// marks a computed field.
type FieldMapping struct {
	DestinationField string               `json:"destination_field" yaml:"destination_field" validate:"required"`
	SourceField      *string              `json:"source_field,omitempty" yaml:"source_field,omitempty"`
	Transformation   *FieldTransformation `json:"transformation,omitempty" yaml:"transformation,omitempty"`
}

// ExecutionPlan configures the run that consumes a transformation contract.
type ExecutionPlan struct {
	BatchSize         int     `json:"batch_size" yaml:"batch_size" validate:"gte=1"`
	ErrorThreshold    float64 `json:"error_threshold" yaml:"error_threshold" validate:"gte=0,lte=1"`
	ValidationEnabled bool    `json:"validation_enabled" yaml:"validation_enabled"`
	RollbackOnError   bool    `json:"rollback_on_error" yaml:"rollback_on_error"`
}

// DefaultExecutionPlan returns batch_size 100, error_threshold 0.1, validation
// on, rollback off.
func DefaultExecutionPlan() ExecutionPlan {
	return ExecutionPlan{
		BatchSize:         100,
		ErrorThreshold:    0.1,
		ValidationEnabled: true,
	}
}

// TransformationContract links a source contract to a destination contract.
type TransformationContract struct {
	ContractType     string         `json:"contract_type" yaml:"contract_type" validate:"eq=transformation"`
	TransformationID string         `json:"transformation_id" yaml:"transformation_id" validate:"required"`
	SourceRef        string         `json:"source_ref" yaml:"source_ref" validate:"required"`
	DestinationRef   string         `json:"destination_ref" yaml:"destination_ref" validate:"required"`
	FieldMappings    []FieldMapping `json:"field_mappings" yaml:"field_mappings" validate:"dive"`
	BusinessRules    []any          `json:"business_rules" yaml:"business_rules"`
	ExecutionPlan    ExecutionPlan  `json:"execution_plan" yaml:"execution_plan"`
	Metadata         map[string]any `json:"metadata" yaml:"metadata"`
}

// Kind implements Contract.
func (t *TransformationContract) Kind() string { return t.ContractType }

// ID implements Contract.
func (t *TransformationContract) ID() string { return t.TransformationID }

// compile-time checks
var (
	_ SourceContract = (*CSVSource)(nil)
	_ SourceContract = (*JSONSource)(nil)
	_ SourceContract = (*DatabaseSource)(nil)
	_ SourceContract = (*SupabaseSource)(nil)
	_ Contract       = (*DestinationContract)(nil)
	_ Contract       = (*TransformationContract)(nil)
)
