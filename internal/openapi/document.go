// Package openapi reads OpenAPI (and Swagger 2) documents as yaml.v3 node
// trees and extracts contract fields from request bodies and component
// schemas.
//
// The node tree keeps mapping keys in document order, which is the order
// endpoints, methods and properties are reported in. JSON documents are
// valid YAML and go through the same decoder.
package openapi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"contractgen/internal/normalize"
	"contractgen/internal/schema"
)

// Document is a parsed OpenAPI document.
type Document struct {
	root *yaml.Node
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, schema.NotFoundf("Schema file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON or YAML document. The root must be a mapping.
func Parse(data []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.Malformedf("Failed to parse schema file: %v", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, schema.Malformedf("Failed to parse schema file: document root is not an object")
	}
	return &Document{root: root}, nil
}

// ---- node helpers ----

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// get returns the value stored under key in mapping n, or nil.
func get(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

// pairs walks a mapping in document order.
func pairs(n *yaml.Node, fn func(key string, val *yaml.Node)) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, deref(n.Content[i+1]))
	}
}

func keys(n *yaml.Node) []string {
	out := []string{}
	pairs(n, func(k string, _ *yaml.Node) { out = append(out, k) })
	return out
}

func isMapping(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.MappingNode
}

func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func boolean(n *yaml.Node) bool {
	b, _ := strconv.ParseBool(scalar(n))
	return b
}

// decoded returns the scalar value typed the way YAML resolves it (int,
// float64, bool, string), or nil when n is absent.
func decoded(n *yaml.Node) any {
	if n == nil {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil
	}
	return v
}

func stringList(n *yaml.Node) []string {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, scalar(deref(c)))
	}
	return out
}

// ---- references ----

// resolve follows $ref chains starting at n. Only document-local pointers
// ("#/...") are supported.
func (d *Document) resolve(n *yaml.Node) (*yaml.Node, error) {
	seen := map[string]bool{}
	for {
		n = deref(n)
		ref := scalar(get(n, "$ref"))
		if ref == "" {
			return n, nil
		}
		if seen[ref] {
			return nil, schema.Malformedf("Circular reference: %s", ref)
		}
		seen[ref] = true

		target, err := d.pointer(ref)
		if err != nil {
			return nil, err
		}
		n = target
	}
}

func (d *Document) pointer(ref string) (*yaml.Node, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, schema.Validationf("Only internal references are supported: %s", ref)
	}
	cur := d.root
	for _, part := range strings.Split(ref[2:], "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		switch cur.Kind {
		case yaml.MappingNode:
			cur = get(cur, part)
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(cur.Content) {
				cur = nil
			} else {
				cur = deref(cur.Content[idx])
			}
		default:
			cur = nil
		}
		if cur == nil {
			return nil, schema.NotFoundf("Reference not found: %s", ref)
		}
	}
	return cur, nil
}

// ---- schemas ----

// ObjectSchema is an object schema with $ref and allOf flattened.
type ObjectSchema struct {
	Properties []normalize.Property
	Required   []string
}

// Fields converts the schema to field definitions. bodyRequired makes every
// field non-nullable.
func (o ObjectSchema) Fields(bodyRequired bool) []schema.FieldDefinition {
	return normalize.JSONFields(o.Properties, o.Required, bodyRequired)
}

// objectSchema flattens n. allOf branches are merged in order and the
// schema's own properties come last; a later property with the same name
// replaces the earlier one in place.
func (d *Document) objectSchema(n *yaml.Node) (ObjectSchema, error) {
	n, err := d.resolve(n)
	if err != nil {
		return ObjectSchema{}, err
	}

	var out ObjectSchema
	pos := map[string]int{}
	add := func(o ObjectSchema) {
		for _, p := range o.Properties {
			if i, ok := pos[p.Name]; ok {
				out.Properties[i] = p
				continue
			}
			pos[p.Name] = len(out.Properties)
			out.Properties = append(out.Properties, p)
		}
		out.Required = append(out.Required, o.Required...)
	}

	if all := get(n, "allOf"); all != nil && all.Kind == yaml.SequenceNode {
		for _, branch := range all.Content {
			sub, err := d.objectSchema(branch)
			if err != nil {
				return ObjectSchema{}, err
			}
			add(sub)
		}
	}

	own := ObjectSchema{Required: stringList(get(n, "required"))}
	var perr error
	pairs(get(n, "properties"), func(name string, val *yaml.Node) {
		if perr != nil || !isMapping(val) {
			return
		}
		s, err := d.jsonSchema(val)
		if err != nil {
			perr = err
			return
		}
		own.Properties = append(own.Properties, normalize.Property{Name: name, Schema: s})
	})
	if perr != nil {
		return ObjectSchema{}, perr
	}
	add(own)
	return out, nil
}

// jsonSchema reads the subset of a property schema the normalizer uses.
func (d *Document) jsonSchema(n *yaml.Node) (normalize.JSONSchema, error) {
	n, err := d.resolve(n)
	if err != nil {
		return normalize.JSONSchema{}, err
	}
	// {allOf: [{$ref}]} is the usual spelling of a described or nullable ref.
	if get(n, "type") == nil {
		if all := get(n, "allOf"); all != nil && all.Kind == yaml.SequenceNode && len(all.Content) > 0 {
			inner, err := d.jsonSchema(all.Content[0])
			if err != nil {
				return normalize.JSONSchema{}, err
			}
			if desc := scalar(get(n, "description")); desc != "" {
				inner.Description = desc
			}
			return inner, nil
		}
	}

	s := normalize.JSONSchema{
		Type:        typeName(get(n, "type")),
		Format:      scalar(get(n, "format")),
		Description: scalar(get(n, "description")),
		Pattern:     scalar(get(n, "pattern")),
		Minimum:     decoded(get(n, "minimum")),
		Maximum:     decoded(get(n, "maximum")),
		MinLength:   intPtr(get(n, "minLength")),
		MaxLength:   intPtr(get(n, "maxLength")),
	}
	if e := get(n, "enum"); e != nil && e.Kind == yaml.SequenceNode {
		var vals []any
		if err := e.Decode(&vals); err == nil {
			s.Enum = vals
		}
	}
	if items := get(n, "items"); isMapping(items) {
		it, err := d.jsonSchema(items)
		if err != nil {
			return normalize.JSONSchema{}, err
		}
		s.Items = &it
	}
	return s, nil
}

// typeName reads "type", which OpenAPI 3.1 also allows as a list such as
// [string, "null"]. The first non-null entry wins.
func typeName(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == yaml.SequenceNode {
		for _, t := range stringList(n) {
			if t != "null" {
				return t
			}
		}
		return "null"
	}
	return scalar(n)
}

func intPtr(n *yaml.Node) *int {
	v, err := strconv.Atoi(scalar(n))
	if err != nil {
		return nil
	}
	return &v
}

// ComponentSchema returns a named schema from components.schemas (OpenAPI 3)
// or definitions (Swagger 2, which PostgREST serves).
func (d *Document) ComponentSchema(name string) (ObjectSchema, bool, error) {
	n := get(get(d.root, "components"), "schemas")
	def := get(n, name)
	if def == nil {
		def = get(get(d.root, "definitions"), name)
	}
	if def == nil {
		return ObjectSchema{}, false, nil
	}
	o, err := d.objectSchema(def)
	return o, true, err
}

// Paths lists the keys of the paths object in document order.
func (d *Document) Paths() []string {
	return keys(get(d.root, "paths"))
}
