package extract

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/model"
)

// Schema holds field definitions, page groups and a compiled JSON schema per
// field. Loose schemas check types only; strict ones also enforce enums.
type Schema struct {
	fields map[string]FieldDef
	order  []string
	groups map[string][]string
	loose  map[string]*jsonschema.Schema
	strict map[string]*jsonschema.Schema
}

// NewSchema compiles fields and validates that every group key is defined.
func NewSchema(fields []FieldDef, groups map[string][]string) (*Schema, error) {
	s := &Schema{
		fields: make(map[string]FieldDef, len(fields)),
		groups: groups,
		loose:  make(map[string]*jsonschema.Schema, len(fields)),
		strict: make(map[string]*jsonschema.Schema, len(fields)),
	}
	compiler := jsonschema.NewCompiler()
	for _, f := range fields {
		if _, dup := s.fields[f.Key]; dup {
			return nil, eris.Errorf("extract: duplicate field %q", f.Key)
		}
		s.fields[f.Key] = f
		s.order = append(s.order, f.Key)

		loose, err := compileField(compiler, f, false)
		if err != nil {
			return nil, err
		}
		strict, err := compileField(compiler, f, true)
		if err != nil {
			return nil, err
		}
		s.loose[f.Key], s.strict[f.Key] = loose, strict
	}
	for name, keys := range groups {
		for _, k := range keys {
			if _, ok := s.fields[k]; !ok {
				return nil, eris.Errorf("extract: group %q references unknown field %q", name, k)
			}
		}
	}
	return s, nil
}

// DefaultSchema returns the residential contract schema.
func DefaultSchema() *Schema {
	s, err := NewSchema(contractFields(), contractGroups())
	if err != nil {
		panic(err)
	}
	return s
}

func compileField(c *jsonschema.Compiler, f FieldDef, strict bool) (*jsonschema.Schema, error) {
	doc := map[string]any{"type": jsonTypes(f.Type)}
	suffix := "loose"
	if strict {
		suffix = "strict"
		if len(f.Enum) > 0 {
			enum := make([]any, 0, len(f.Enum)+1)
			for _, e := range f.Enum {
				enum = append(enum, e)
			}
			doc["enum"] = append(enum, nil)
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: marshal schema for %s", f.Key)
	}
	url := "field/" + f.Key + "." + suffix + ".json"
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, eris.Wrapf(err, "extract: add schema for %s", f.Key)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: compile schema for %s", f.Key)
	}
	return sch, nil
}

func jsonTypes(t FieldType) []string {
	switch t {
	case TypeNumber:
		return []string{"number", "null"}
	case TypeBoolean:
		return []string{"boolean", "null"}
	case TypeAmount:
		return []string{"number", "string", "null"}
	default:
		return []string{"string", "null"}
	}
}

// TotalFields returns the number of distinct fields in the schema.
func (s *Schema) TotalFields() int {
	return len(s.order)
}

// Fields returns every field definition in declaration order.
func (s *Schema) Fields() []FieldDef {
	out := make([]FieldDef, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.fields[k])
	}
	return out
}

// Field looks up one field definition.
func (s *Schema) Field(key string) (FieldDef, bool) {
	f, ok := s.fields[key]
	return f, ok
}

// Group returns the field definitions of a named group.
func (s *Schema) Group(name string) ([]FieldDef, bool) {
	keys, ok := s.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]FieldDef, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.fields[k])
	}
	return out, true
}

// HasGroup reports whether name is a known group.
func (s *Schema) HasGroup(name string) bool {
	_, ok := s.groups[name]
	return ok
}

// GroupNames lists the known groups, sorted.
func (s *Schema) GroupNames() []string {
	names := make([]string, 0, len(s.groups))
	for n := range s.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sanitize keeps only keys in allowed and drops values that fail their field
// schema. It returns the kept map and the dropped keys.
func (s *Schema) Sanitize(m model.FieldMap, allowed []string, strict bool) (model.FieldMap, []string) {
	schemas := s.loose
	if strict {
		schemas = s.strict
	}
	out := make(model.FieldMap, len(allowed))
	var dropped []string
	for _, k := range allowed {
		v, ok := m[k]
		if !ok {
			continue
		}
		sch, ok := schemas[k]
		if !ok {
			continue
		}
		if err := sch.Validate(v); err != nil {
			zap.L().Debug("extract: dropping invalid field",
				zap.String("field", k), zap.Any("value", v), zap.Error(err))
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	return out, dropped
}

// Keys returns every field key in declaration order.
func (s *Schema) Keys() []string {
	return append([]string(nil), s.order...)
}
