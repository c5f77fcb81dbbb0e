package contract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"contractgen/internal/inspect"
	"contractgen/internal/logging"
	"contractgen/internal/openapi"
	"contractgen/internal/schema"
	"contractgen/internal/storage"
)

// Destination types recorded in metadata.destination_type.
const (
	DestinationAPI      = "api"
	DestinationDatabase = "database"
	DestinationSupabase = "supabase"
)

var inspectTableFn = inspect.TableSchema

// FieldSpec is one entry of a provided schema's field list: a bare name
// or a full field definition.
type FieldSpec struct {
	Name string
	Def  *schema.FieldDefinition
}

type fieldDoc struct {
	Name        string                   `yaml:"name"`
	DataType    string                   `yaml:"data_type"`
	Nullable    *bool                    `yaml:"nullable"`
	Description string                   `yaml:"description"`
	Constraints []schema.FieldConstraint `yaml:"constraints"`
}

// UnmarshalYAML accepts a string or a field mapping. JSON input decodes
// the same way.
func (f *FieldSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		f.Name, f.Def = n.Value, nil
		return nil
	case yaml.MappingNode:
		var d fieldDoc
		if err := n.Decode(&d); err != nil {
			return err
		}
		def := schema.NewField(d.Name, d.DataType)
		if d.Nullable != nil {
			def.Nullable = *d.Nullable
		}
		def.Description = d.Description
		if d.Constraints != nil {
			def.Constraints = d.Constraints
		}
		f.Name, f.Def = d.Name, &def
		return nil
	}
	return fmt.Errorf("line %d: field must be a name or a mapping", n.Line)
}

// ProvidedSchema is a caller-supplied destination schema. Fields may be
// full definitions or bare names paired positionally with Types.
type ProvidedSchema struct {
	Fields []FieldSpec `yaml:"fields"`
	Types  []string    `yaml:"types"`
}

// LoadSchema reads a ProvidedSchema from a JSON or YAML file.
func LoadSchema(path string) (*ProvidedSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, schema.NotFoundf("Schema file not found: %s", path)
		}
		return nil, schema.Malformedf("Error reading file: %v", err)
	}
	var p ProvidedSchema
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, schema.Malformedf("Failed to parse schema file: %v", err)
	}
	return &p, nil
}

// FieldDefinitions expands the schema. A bare name takes the type at the
// same index in Types, or "string" when Types is shorter.
//
// When every field is a bare name and Types is non-empty, the lengths must
// match.
func (p ProvidedSchema) FieldDefinitions() ([]schema.FieldDefinition, error) {
	allNames := true
	for _, f := range p.Fields {
		if f.Def != nil {
			allNames = false
			break
		}
	}
	if len(p.Types) > 0 && len(p.Types) != len(p.Fields) && allNames {
		return nil, schema.Validationf("Schema mismatch: 'fields' has %d names but 'types' has %d types.", len(p.Fields), len(p.Types))
	}

	out := make([]schema.FieldDefinition, 0, len(p.Fields))
	for i, f := range p.Fields {
		if f.Def != nil {
			out = append(out, *f.Def)
			continue
		}
		dataType := "string"
		if i < len(p.Types) {
			dataType = p.Types[i]
		}
		out = append(out, schema.NewField(f.Name, dataType))
	}
	return out, nil
}

// DatabaseTarget is a table to inspect for destination fields.
type DatabaseTarget struct {
	Kind   string
	DSN    string
	Table  string
	Schema string
}

// APITarget is an OpenAPI operation whose request body describes the
// destination.
type APITarget struct {
	SchemaFile string
	Endpoint   string
	// Method defaults to POST.
	Method string
}

// DestinationOptions configure Destination. With neither target set the
// contract carries only the provided schema, if any.
type DestinationOptions struct {
	ID       string
	Schema   *ProvidedSchema
	Metadata map[string]any
	Database *DatabaseTarget
	API      *APITarget
	Logger   *zap.Logger
}

// Destination builds a destination contract.
//
// Fields come from database inspection or API introspection. A provided
// schema with fields takes precedence over the inspected ones, and an
// inspection failure is tolerated when a schema was provided.
func Destination(ctx context.Context, opt DestinationOptions) (*schema.DestinationContract, error) {
	log := logging.OrNop(opt.Logger)
	md := copyMetadata(opt.Metadata)

	var inspected []schema.FieldDefinition
	haveInspected := false

	if t := opt.Database; t != nil && t.DSN != "" && t.Table != "" {
		if strings.TrimSpace(t.Kind) == "" {
			return nil, schema.Validationf("database_type is required when connection_string is provided")
		}
		tbl, err := inspectTableFn(ctx, storage.Config{Kind: t.Kind, DSN: t.DSN}, t.Table, t.Schema, inspect.Options{Logger: opt.Logger})
		switch {
		case err == nil:
			inspected, haveInspected = tbl.Fields, true
			kind, _ := storage.NormalizeKind(t.Kind)
			md["destination_type"] = DestinationDatabase
			md["database_type"] = kind
			md["table_name"] = t.Table
			if tbl.Schema != "" {
				md["db_schema"] = tbl.Schema
			}
		case opt.Schema == nil:
			return nil, prefixed("Failed to inspect database table", err)
		default:
			log.Warn("database inspection failed; using provided schema", zap.String("table", t.Table), logging.Error(err))
		}
	}

	if t := opt.API; t != nil && t.SchemaFile != "" && t.Endpoint != "" {
		method := strings.ToUpper(t.Method)
		if method == "" {
			method = openapi.DefaultMethod
		}
		info, err := introspectAPI(t.SchemaFile, t.Endpoint, method)
		switch {
		case err == nil:
			inspected, haveInspected = info.Fields, true
			md["destination_type"] = DestinationAPI
			md["endpoint"] = t.Endpoint
			md["http_method"] = method
			md["schema_file"] = t.SchemaFile
		case opt.Schema == nil:
			return nil, prefixed("Failed to introspect API schema", err)
		default:
			log.Warn("api introspection failed; using provided schema", zap.String("endpoint", t.Endpoint), logging.Error(err))
		}
	}

	var fields []schema.FieldDefinition
	switch {
	case opt.Schema != nil && (len(opt.Schema.Fields) > 0 || !haveInspected):
		var err error
		if fields, err = opt.Schema.FieldDefinitions(); err != nil {
			return nil, err
		}
	case haveInspected:
		fields = inspected
	}

	d := schema.NewDestination(opt.ID, md)
	return finishDestination(d, fields)
}

func introspectAPI(path, endpoint, method string) (schema.SchemaInfo, error) {
	doc, err := openapi.Load(path)
	if err != nil {
		return schema.SchemaInfo{}, err
	}
	return doc.ExtractEndpointSchema(endpoint, method)
}

// SupabaseDestination checks that the table is readable and infers its
// fields from a small sample.
func SupabaseDestination(ctx context.Context, opt SupabaseOptions) (*schema.DestinationContract, error) {
	if opt.Table == "" {
		return nil, schema.Validationf("table name is required")
	}
	cl, err := opt.client()
	if err != nil {
		return nil, err
	}
	info, err := cl.ValidateDestinationTable(ctx, opt.Table)
	if err != nil {
		return nil, err
	}

	md := copyMetadata(opt.Metadata)
	md["destination_type"] = DestinationSupabase
	md["project_url"] = cl.ProjectURL()
	md["table_name"] = opt.Table
	id := opt.ID
	if id == "" {
		id = opt.Table
	}
	return finishDestination(schema.NewDestination(id, md), info.Fields)
}

func finishDestination(d *schema.DestinationContract, fields []schema.FieldDefinition) (*schema.DestinationContract, error) {
	if fields != nil {
		d.Schema.Fields = fields
	}
	d.ValidationRules = RulesFor(d.Schema.Fields)
	if err := schema.Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// RulesFor derives validation rules from field definitions:
//
//	required_fields     non-nullable fields
//	unique_constraints  fields with primary_key or unique
//	data_range_checks   {"min_value", "max_value"} per field with range
//	format_validation   list of pattern values per field
func RulesFor(fields []schema.FieldDefinition) schema.ValidationRules {
	r := schema.ValidationRules{
		RequiredFields:    []string{},
		UniqueConstraints: []string{},
		DataRangeChecks:   map[string]any{},
		FormatValidation:  map[string]any{},
	}
	for _, f := range fields {
		if !f.Nullable {
			r.RequiredFields = append(r.RequiredFields, f.Name)
		}
		if f.HasConstraint(schema.ConstraintPrimaryKey) || f.HasConstraint(schema.ConstraintUnique) {
			r.UniqueConstraints = append(r.UniqueConstraints, f.Name)
		}

		var bounds map[string]any
		var patterns []any
		for _, c := range f.Constraints {
			switch c.Type {
			case schema.ConstraintRange:
				if bounds == nil {
					bounds = map[string]any{}
				}
				if c.MinValue != nil {
					bounds["min_value"] = c.MinValue
				}
				if c.MaxValue != nil {
					bounds["max_value"] = c.MaxValue
				}
			case schema.ConstraintPattern:
				if c.Value != nil {
					patterns = append(patterns, c.Value)
				}
			}
		}
		if bounds != nil {
			r.DataRangeChecks[f.Name] = bounds
		}
		if patterns != nil {
			r.FormatValidation[f.Name] = patterns
		}
	}
	return r
}

// prefixed keeps err's kind under a new leading message.
func prefixed(prefix string, err error) error {
	kind := schema.ErrValidation
	var se *schema.Error
	if errors.As(err, &se) {
		kind = se.Kind
	}
	return &schema.Error{Kind: kind, Msg: prefix + ": " + err.Error(), Err: err}
}
