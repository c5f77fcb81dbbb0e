package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type discriminant struct {
	ContractType string `json:"contract_type"`
	SourceFormat string `json:"source_format"`
}

// DecodeSourceContract decodes a JSON source contract into the variant named
// by its source_format. The result is validated.
func DecodeSourceContract(data []byte) (SourceContract, error) {
	var d discriminant
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, Malformedf("decode source contract: %v", err)
	}
	if d.ContractType != "" && d.ContractType != ContractSource {
		return nil, Validationf("contract_type is %q, want %q", d.ContractType, ContractSource)
	}

	var c SourceContract
	switch d.SourceFormat {
	case FormatCSV:
		c = &CSVSource{}
	case FormatJSON:
		c = &JSONSource{}
	case FormatDatabase:
		c = &DatabaseSource{}
	case FormatSupabase:
		c = &SupabaseSource{}
	default:
		return nil, Validationf("unknown source_format %q (want csv, json, database or supabase)", d.SourceFormat)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, Malformedf("decode %s source contract: %v", d.SourceFormat, err)
	}
	if b := c.Base(); b.ContractType == "" {
		b.ContractType = ContractSource
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// DecodeContract decodes any contract document by its contract_type.
func DecodeContract(data []byte) (Contract, error) {
	var d discriminant
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, Malformedf("decode contract: %v", err)
	}

	switch d.ContractType {
	case ContractSource:
		return DecodeSourceContract(data)
	case ContractDestination:
		c := &DestinationContract{}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, Malformedf("decode destination contract: %v", err)
		}
		return c, Validate(c)
	case ContractTransformation:
		c := &TransformationContract{}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, Malformedf("decode transformation contract: %v", err)
		}
		return c, Validate(c)
	default:
		return nil, Validationf("unknown contract_type %q (want source, destination or transformation)", d.ContractType)
	}
}

// ---- validation ----

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct-tag constraints on a contract or any schema value
// (null_percentage within 0..100, batch_size at least 1, required ids).
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Validationf("invalid contract: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return Validationf("invalid contract: %s", strings.Join(msgs, "; "))
}

// ToMetadata flattens v into a metadata map through its JSON form.
func ToMetadata(v any) map[string]any {
	out := map[string]any{}
	b, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}
