package schema

// ColumnInfo is raw column metadata as reported by a database or PostgREST.
type ColumnInfo struct {
	Name     string  `json:"name" yaml:"name"`
	Type     string  `json:"type" yaml:"type"`
	Nullable bool    `json:"nullable" yaml:"nullable"`
	Default  *string `json:"default,omitempty" yaml:"default,omitempty"`
}

// TableInfo is one entry of a table listing.
type TableInfo struct {
	TableName         string       `json:"table_name" yaml:"table_name"`
	Schema            string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	Type              string       `json:"type" yaml:"type"` // "table" or "view"
	HasPrimaryKey     bool         `json:"has_primary_key" yaml:"has_primary_key"`
	PrimaryKeyColumns []string     `json:"primary_key_columns" yaml:"primary_key_columns"`
	RowCount          *int64       `json:"row_count,omitempty" yaml:"row_count,omitempty"`
	ColumnCount       *int         `json:"column_count,omitempty" yaml:"column_count,omitempty"`
	Columns           []ColumnInfo `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// ForeignKeyInfo is a foreign key declared on a table.
type ForeignKeyInfo struct {
	ConstraintName  string   `json:"constraint_name,omitempty" yaml:"constraint_name,omitempty"`
	Columns         []string `json:"columns" yaml:"columns"`
	ReferredTable   string   `json:"referred_table,omitempty" yaml:"referred_table,omitempty"`
	ReferredColumns []string `json:"referred_columns" yaml:"referred_columns"`
	ReferredSchema  string   `json:"referred_schema,omitempty" yaml:"referred_schema,omitempty"`
}

// ReferencedByInfo is a foreign key on another table pointing at this one.
type ReferencedByInfo struct {
	ConstraintName  string   `json:"constraint_name,omitempty" yaml:"constraint_name,omitempty"`
	Table           string   `json:"table" yaml:"table"`
	Columns         []string `json:"columns" yaml:"columns"`
	ReferredColumns []string `json:"referred_columns" yaml:"referred_columns"`
}

// RelationshipInfo groups both directions of a table's foreign keys.
type RelationshipInfo struct {
	ForeignKeys  []ForeignKeyInfo   `json:"foreign_keys" yaml:"foreign_keys"`
	ReferencedBy []ReferencedByInfo `json:"referenced_by" yaml:"referenced_by"`
}

// TableMetadata is stored in a database source contract's metadata.
type TableMetadata struct {
	DatabaseType    string       `json:"database_type" yaml:"database_type"`
	TableName       string       `json:"table_name" yaml:"table_name"`
	Schema          string       `json:"db_schema,omitempty" yaml:"db_schema,omitempty"`
	PrimaryKeys     []string     `json:"primary_keys" yaml:"primary_keys"`
	ColumnCount     int          `json:"column_count" yaml:"column_count"`
	NullableColumns []string     `json:"nullable_columns" yaml:"nullable_columns"`
	SampleSize      int          `json:"sample_size" yaml:"sample_size"`
	Columns         []ColumnInfo `json:"columns" yaml:"columns"`
}

// SupabaseMetadata is stored in a Supabase source contract's metadata.
type SupabaseMetadata struct {
	ProjectURL      string       `json:"project_url" yaml:"project_url"`
	TableName       string       `json:"table_name" yaml:"table_name"`
	PrimaryKeys     []string     `json:"primary_keys" yaml:"primary_keys"`
	ColumnCount     int          `json:"column_count" yaml:"column_count"`
	NullableColumns []string     `json:"nullable_columns" yaml:"nullable_columns"`
	SampleSize      int          `json:"sample_size" yaml:"sample_size"`
	Columns         []ColumnInfo `json:"columns" yaml:"columns"`
}
