package postgrest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"contractgen/internal/normalize"
	"contractgen/internal/schema"
)

// Table is the schema-only view of one table.
type Table struct {
	Name       string
	Fields     []schema.FieldDefinition
	PrimaryKey []string
}

// Info returns the field list in contract form.
func (t Table) Info() schema.SchemaInfo { return schema.SchemaInfo{Fields: t.Fields} }

// TableSchema reads the table definition from the PostgREST OpenAPI
// description instead of sampling rows.
//
// PostgREST puts the PostgreSQL column type in "format", which is mapped
// through the SQL type table; properties without a format fall back to the
// JSON-Schema mapping. Column descriptions carry key markers:
//
//	Note:\nThis is a Primary Key.<pk/>
//	Note:\nThis is a Foreign Key to `users.id`.<fk table='users' column='id'/>
//
// which become primary_key and foreign_key constraints and are stripped
// from the description.
func (c *Client) TableSchema(ctx context.Context, table string) (Table, error) {
	doc, err := c.Spec(ctx)
	if err != nil {
		return Table{}, tableError(err, table)
	}
	obj, ok, err := doc.ComponentSchema(table)
	if err != nil {
		return Table{}, tableError(err, table)
	}
	if !ok {
		return Table{}, schema.NotFoundf("Table '%s' not found in Supabase project", table)
	}

	req := make(map[string]bool, len(obj.Required))
	for _, r := range obj.Required {
		req[r] = true
	}

	out := Table{Name: table, Fields: make([]schema.FieldDefinition, 0, len(obj.Properties)), PrimaryKey: []string{}}
	for _, p := range obj.Properties {
		desc, marks := parseDescription(p.Schema.Description)

		dataType := normalize.JSONType(p.Schema)
		if p.Schema.Format != "" {
			dataType = normalize.SQLType(p.Schema.Format)
		}
		f := schema.FieldDefinition{
			Name:        p.Name,
			DataType:    dataType,
			Nullable:    !req[p.Name],
			Description: desc,
			Constraints: normalize.JSONConstraints(p.Schema, req[p.Name]),
		}
		if marks.primaryKey {
			f.Constraints = append(f.Constraints, schema.FieldConstraint{Type: schema.ConstraintPrimaryKey})
			out.PrimaryKey = append(out.PrimaryKey, p.Name)
		}
		f.Constraints = append(f.Constraints, marks.foreignKeys...)
		out.Fields = append(out.Fields, f)
	}

	c.log.Debug("supabase table described",
		zap.String("table", table),
		zap.Int("fields", len(out.Fields)),
		zap.Strings("primary_key", out.PrimaryKey),
	)
	return out, nil
}

type keyMarks struct {
	primaryKey  bool
	foreignKeys []schema.FieldConstraint
}

// parseDescription extracts <pk/> and <fk table column/> markers and
// returns the remaining text.
func parseDescription(desc string) (string, keyMarks) {
	var m keyMarks
	if !strings.Contains(desc, "<") {
		return desc, m
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return desc, m
	}

	m.primaryKey = doc.Find("pk").Length() > 0
	doc.Find("fk").Each(func(_ int, sel *goquery.Selection) {
		t, _ := sel.Attr("table")
		col, _ := sel.Attr("column")
		if t == "" {
			return
		}
		m.foreignKeys = append(m.foreignKeys, schema.FieldConstraint{
			Type:           schema.ConstraintForeignKey,
			ReferredTable:  t,
			ReferredColumn: col,
		})
	})
	// The HTML parser does not self-close <pk/> and <fk/>, so text after a
	// marker ends up inside it. Lift it out before dropping the marker.
	for markers := doc.Find("pk, fk"); markers.Length() > 0; markers = doc.Find("pk, fk") {
		marker := markers.First()
		if kids := marker.Contents(); kids.Length() > 0 {
			kids.Unwrap()
		} else {
			marker.Remove()
		}
	}
	return strings.TrimSpace(doc.Text()), m
}
