package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"

	"contractgen/internal/schema"
)

// DefaultMethod is used by ExtractEndpointSchema when method is empty.
const DefaultMethod = "POST"

// Methods in the order operations are reported.
var methods = []string{"get", "post", "put", "patch", "delete", "head", "options", "trace"}

// Body media types, most preferred first.
var bodyMediaTypes = []string{"application/json", "application/x-www-form-urlencoded"}

// ErrExtractFailed is the per-endpoint error text in endpoint listings.
const ErrExtractFailed = "Failed to extract schema"

func (d *Document) paths() (*yaml.Node, error) {
	p := get(d.root, "paths")
	if p == nil || len(p.Content) == 0 {
		return nil, schema.NotFoundf("No paths found in OpenAPI specification")
	}
	return p, nil
}

// ExtractEndpointSchema returns the request body fields of one operation.
//
// Errors name what is available: the endpoint list when the path is
// missing, the operation's methods when the method is missing. An
// operation without a request body, or with a body in an unsupported media
// type, has no fields.
func (d *Document) ExtractEndpointSchema(endpoint, method string) (schema.SchemaInfo, error) {
	if method == "" {
		method = DefaultMethod
	}
	method = strings.ToUpper(method)

	paths, err := d.paths()
	if err != nil {
		return schema.SchemaInfo{}, err
	}
	item := get(paths, endpoint)
	if item == nil {
		return schema.SchemaInfo{}, schema.NotFoundf("Endpoint '%s' not found in schema. Available endpoints: %s",
			endpoint, schema.FormatList(keys(paths)))
	}
	item, err = d.resolve(item)
	if err != nil {
		return schema.SchemaInfo{}, err
	}

	op := operation(item, method)
	if op == nil {
		return schema.SchemaInfo{}, schema.NotFoundf("Method '%s' not found for endpoint '%s'. Available methods: %s",
			method, endpoint, schema.FormatList(operationMethods(item)))
	}

	body, required, err := d.requestBody(op)
	if err != nil {
		return schema.SchemaInfo{}, err
	}
	if body == nil {
		return schema.SchemaInfo{Fields: []schema.FieldDefinition{}}, nil
	}
	obj, err := d.objectSchema(body)
	if err != nil {
		return schema.SchemaInfo{}, err
	}
	return schema.SchemaInfo{Fields: obj.Fields(required)}, nil
}

func operation(item *yaml.Node, method string) *yaml.Node {
	m := strings.ToLower(method)
	for _, known := range methods {
		if known == m {
			if op := get(item, m); isMapping(op) {
				return op
			}
		}
	}
	return nil
}

func operationMethods(item *yaml.Node) []string {
	out := []string{}
	for _, m := range methods {
		if isMapping(get(item, m)) {
			out = append(out, strings.ToUpper(m))
		}
	}
	return out
}

// requestBody resolves op.requestBody and picks the schema of the first
// supported media type. required reports requestBody.required.
func (d *Document) requestBody(op *yaml.Node) (*yaml.Node, bool, error) {
	rb := get(op, "requestBody")
	if rb == nil {
		return nil, false, nil
	}
	rb, err := d.resolve(rb)
	if err != nil {
		return nil, false, err
	}
	required := boolean(get(rb, "required"))

	content := get(rb, "content")
	for _, mt := range bodyMediaTypes {
		if media := get(content, mt); media != nil {
			return get(media, "schema"), required, nil
		}
	}
	return nil, required, nil
}

// ExtractEndpointList lists every operation in document order, optionally
// filtered to one method. Paths that do not start with "/" (extensions such
// as x-tagGroups) are skipped. With withFields set, each entry carries its
// request body fields, or ErrExtractFailed in Error when extraction fails.
func (d *Document) ExtractEndpointList(withFields bool, method string) []schema.EndpointInfo {
	filter := strings.ToUpper(method)
	out := []schema.EndpointInfo{}

	pairs(get(d.root, "paths"), func(path string, item *yaml.Node) {
		if !strings.HasPrefix(path, "/") {
			return
		}
		item, err := d.resolve(item)
		if err != nil {
			return
		}
		for _, m := range methods {
			op := get(item, m)
			upper := strings.ToUpper(m)
			if !isMapping(op) || (filter != "" && upper != filter) {
				continue
			}
			info := schema.EndpointInfo{
				Method:  upper,
				Path:    path,
				Summary: scalar(get(op, "summary")),
			}
			if withFields {
				s, err := d.ExtractEndpointSchema(path, upper)
				if err != nil {
					info.Error = ErrExtractFailed
				} else {
					info.Fields = s.Fields
				}
			}
			out = append(out, info)
		}
	})
	return out
}
