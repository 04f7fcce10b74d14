/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filters

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/tomoncle/modelctl/meta"
	"github.com/tomoncle/modelctl/types"
)

// Operator is the comparison a filter field applies to its column.
type Operator string

const (
	OpEq   Operator = "eq"
	OpLt   Operator = "lt"
	OpGt   Operator = "gt"
	OpLte  Operator = "lte"
	OpGte  Operator = "gte"
	OpLike Operator = "like"
)

// Suffix is the query parameter suffix of the operator; exact match has none.
func (op Operator) Suffix() string {
	if op == OpEq {
		return ""
	}
	return "_" + string(op)
}

func (op Operator) describe(column string) string {
	switch op {
	case OpLt:
		return "Less than " + column
	case OpGt:
		return "Greater than " + column
	case OpLte:
		return "Less than or equal to " + column
	case OpGte:
		return "Greater than or equal to " + column
	case OpLike:
		return "Partial match for " + column
	default:
		return "Filter by " + column
	}
}

// Field is one optional filter parameter derived from a model column.
type Field struct {
	Name            string
	Column          string
	Op              Operator
	Kind            meta.Kind
	CaseInsensitive bool
	Description     string
	column          *meta.Field
}

// Type is the Go type accepted for the field value.
func (f *Field) Type() reflect.Type {
	if f.Op == OpLike {
		return reflect.TypeOf("")
	}
	return f.column.Type
}

// Schema is the synthesized filter schema of one model: an ordered set of
// optional fields, each absent unless a value is supplied.
type Schema struct {
	name   string
	model  *meta.Model
	fields []*Field
	byName map[string]*Field
}

type schemaOptions struct {
	inclusive bool
	exclude   map[string]struct{}
	only      map[string]struct{}
}

// SchemaOption customizes filter synthesis.
type SchemaOption func(*schemaOptions)

// WithInclusiveBounds adds `_lte` and `_gte` next to `_lt` and `_gt`.
func WithInclusiveBounds() SchemaOption {
	return func(o *schemaOptions) { o.inclusive = true }
}

// WithExclude leaves the given columns out of the schema.
func WithExclude(columns ...string) SchemaOption {
	return func(o *schemaOptions) {
		for _, c := range columns {
			o.exclude[c] = struct{}{}
		}
	}
}

// WithOnly restricts the schema to the given columns.
func WithOnly(columns ...string) SchemaOption {
	return func(o *schemaOptions) {
		if o.only == nil {
			o.only = map[string]struct{}{}
		}
		for _, c := range columns {
			o.only[c] = struct{}{}
		}
	}
}

// NewSchema synthesizes the filter schema of a bun model.
func NewSchema(model any, opts ...SchemaOption) (*Schema, error) {
	m, err := meta.Inspect(model)
	if err != nil {
		return nil, err
	}
	return FromModel(m, opts...), nil
}

// SchemaFor synthesizes the filter schema of model type T.
func SchemaFor[T any](opts ...SchemaOption) (*Schema, error) {
	return NewSchema((*T)(nil), opts...)
}

// FromModel synthesizes a schema from a model description. Exact-match
// fields come first per column, followed by its comparison variants; a
// variant whose name is already a column of the model is not generated.
func FromModel(m *meta.Model, opts ...SchemaOption) *Schema {
	o := &schemaOptions{exclude: map[string]struct{}{}}
	for _, opt := range opts {
		opt(o)
	}
	s := &Schema{
		name:   m.Name + "Filter",
		model:  m,
		byName: map[string]*Field{},
	}
	for _, col := range m.Fields {
		if !o.selected(col) {
			continue
		}
		for _, op := range operatorsFor(col.Kind, o.inclusive) {
			name := col.Column + op.Suffix()
			if op != OpEq {
				if _, clash := m.Column(name); clash {
					continue
				}
			}
			f := &Field{
				Name:            name,
				Column:          col.Column,
				Op:              op,
				Kind:            col.Kind,
				CaseInsensitive: op == OpLike && col.HasFilterOption("icase"),
				Description:     op.describe(col.Column),
				column:          col,
			}
			s.fields = append(s.fields, f)
			s.byName[name] = f
		}
	}
	return s
}

func (o *schemaOptions) selected(col *meta.Field) bool {
	if col.HasFilterOption("-") {
		return false
	}
	if _, ok := o.exclude[col.Column]; ok {
		return false
	}
	if o.only != nil {
		_, ok := o.only[col.Column]
		return ok
	}
	return true
}

func operatorsFor(k meta.Kind, inclusive bool) []Operator {
	switch {
	case k.Ordered() && inclusive:
		return []Operator{OpEq, OpLt, OpGt, OpLte, OpGte}
	case k.Ordered():
		return []Operator{OpEq, OpLt, OpGt}
	case k == meta.KindString:
		return []Operator{OpEq, OpLike}
	case k == meta.KindBool:
		return []Operator{OpEq}
	default:
		return nil
	}
}

// Name returns the schema name, "<Model>Filter".
func (s *Schema) Name() string { return s.name }

// Model returns the model description the schema was synthesized from.
func (s *Schema) Model() *meta.Model { return s.model }

// Fields returns the schema fields in order.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the named schema field.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Has reports whether name is a field of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Validate builds a filter instance from programmatic values. Unknown names
// and values of the wrong type are rejected; nil values are absent.
func (s *Schema) Validate(in map[string]any) (Values, error) {
	verr := types.NewValidationError(s.name)
	out := Values{}
	for name, raw := range in {
		f, ok := s.byName[name]
		if !ok {
			verr.Add(name, "unknown filter field")
			continue
		}
		if raw == nil {
			continue
		}
		v, err := f.convert(raw, false)
		if err != nil {
			verr.Add(name, err.Error())
			continue
		}
		out[name] = v
	}
	if err := verr.OrNil(); err != nil {
		sortFieldErrors(verr)
		return nil, err
	}
	return out, nil
}

// Parse builds a filter instance from query parameters. Only schema fields are
// read, so pagination and other parameters may share the query string. An
// empty parameter is absent.
func (s *Schema) Parse(q url.Values) (Values, error) {
	verr := types.NewValidationError(s.name)
	out := Values{}
	for _, f := range s.fields {
		raw := strings.TrimSpace(q.Get(f.Name))
		if raw == "" {
			continue
		}
		v, err := f.convert(raw, true)
		if err != nil {
			verr.Add(f.Name, err.Error())
			continue
		}
		out[f.Name] = v
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Field) convert(raw any, weak bool) (any, error) {
	if f.Op == OpLike {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	}
	v, err := f.column.Convert(raw, weak)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Values is a populated filter instance keyed by schema field name. A missing
// key or a nil value is absent and contributes no predicate.
type Values map[string]any

// Present reports whether name carries a value.
func (v Values) Present(name string) bool {
	val, ok := v[name]
	return ok && val != nil
}

// Empty reports whether no field carries a value.
func (v Values) Empty() bool {
	for name := range v {
		if v.Present(name) {
			return false
		}
	}
	return true
}
