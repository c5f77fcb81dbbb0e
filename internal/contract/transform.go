package contract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"contractgen/internal/schema"
)

// TransformOptions configure Transformation.
type TransformOptions struct {
	// ID defaults to "transform_<uuid>".
	ID             string
	SourceRef      string
	DestinationRef string
	// Metadata is stored on the contract; batch_size and error_threshold
	// entries override the execution plan defaults.
	Metadata map[string]any

	// Source and Destination fill empty refs with their ids. With
	// MapFields set, field_mappings are built from their schemas.
	Source      schema.SourceContract
	Destination *schema.DestinationContract
	MapFields   bool
}

// Transformation links a source to a destination.
func Transformation(opt TransformOptions) (*schema.TransformationContract, error) {
	id := opt.ID
	if id == "" {
		id = "transform_" + uuid.NewString()
	}
	srcRef, dstRef := opt.SourceRef, opt.DestinationRef
	if srcRef == "" && opt.Source != nil {
		srcRef = opt.Source.ID()
	}
	if dstRef == "" && opt.Destination != nil {
		dstRef = opt.Destination.ID()
	}

	plan := schema.DefaultExecutionPlan()
	if v, ok := opt.Metadata["batch_size"]; ok {
		n, err := intValue(v)
		if err != nil {
			return nil, schema.Validationf("batch_size must be an integer: %v", v)
		}
		plan.BatchSize = n
	}
	if v, ok := opt.Metadata["error_threshold"]; ok {
		f, err := floatValue(v)
		if err != nil {
			return nil, schema.Validationf("error_threshold must be a number: %v", v)
		}
		plan.ErrorThreshold = f
	}

	t := &schema.TransformationContract{
		ContractType:     schema.ContractTransformation,
		TransformationID: id,
		SourceRef:        srcRef,
		DestinationRef:   dstRef,
		FieldMappings:    []schema.FieldMapping{},
		BusinessRules:    []any{},
		ExecutionPlan:    plan,
		Metadata:         copyMetadata(opt.Metadata),
	}
	if opt.MapFields && opt.Source != nil && opt.Destination != nil {
		t.FieldMappings = MapFields(opt.Source.Base().Schema.Fields, opt.Destination.Schema.Fields)
	}
	if err := schema.Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// MapFields pairs destination fields with source fields of the same name,
// ignoring case. Destination fields without a match are left out.
//
// A differing data type yields a cast; otherwise a differing name yields a
// rename. Equal pairs carry no transformation.
func MapFields(src, dst []schema.FieldDefinition) []schema.FieldMapping {
	byName := make(map[string]schema.FieldDefinition, len(src))
	for _, f := range src {
		k := strings.ToLower(f.Name)
		if _, dup := byName[k]; !dup {
			byName[k] = f
		}
	}

	out := []schema.FieldMapping{}
	for _, d := range dst {
		s, ok := byName[strings.ToLower(d.Name)]
		if !ok {
			continue
		}
		name := s.Name
		m := schema.FieldMapping{DestinationField: d.Name, SourceField: &name}
		switch {
		case !strings.EqualFold(s.DataType, d.DataType):
			m.Transformation = &schema.FieldTransformation{
				Type:       schema.TransformCast,
				Parameters: map[string]any{"from_type": s.DataType, "to_type": d.DataType},
			}
		case s.Name != d.Name:
			m.Transformation = &schema.FieldTransformation{
				Type:       schema.TransformRename,
				Parameters: map[string]any{"from": s.Name, "to": d.Name},
			}
		}
		out = append(out, m)
	}
	return out
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, strconv.ErrSyntax
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, strconv.ErrSyntax
}

func floatValue(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, strconv.ErrSyntax
}
