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

package meta

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/inflection"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	modelsMap sync.Map // reflect.Type -> *Model
)

// Kind groups Go column types by the comparisons they support.
type Kind int

const (
	KindOther Kind = iota
	KindString
	KindInt
	KindUint
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "other"
	}
}

// Ordered reports whether values of the kind can be compared with < and >.
func (k Kind) Ordered() bool {
	switch k {
	case KindInt, KindUint, KindFloat, KindTime:
		return true
	}
	return false
}

// Field describes one persisted column of a model.
type Field struct {
	GoName        string
	Column        string
	JSONName      string
	Type          reflect.Type
	Kind          Kind
	Index         []int
	PrimaryKey    bool
	NotNull       bool
	AutoIncrement bool
	Nullable      bool
	filterTag     []string
}

// HasFilterOption reports whether the `filter` struct tag carries opt.
func (f *Field) HasFilterOption(opt string) bool {
	for _, o := range f.filterTag {
		if o == opt {
			return true
		}
	}
	return false
}

// Value returns the field inside row, which must be a struct value of the model type.
func (f *Field) Value(row reflect.Value) reflect.Value {
	return row.FieldByIndex(f.Index)
}

// Model is the column description table of a bun model, built once per type.
type Model struct {
	Name    string
	Table   string
	Type    reflect.Type
	Fields  []*Field
	PKs     []*Field
	columns map[string]*Field
	aliases map[string]*Field
}

// Column returns the field stored in the named column.
func (m *Model) Column(name string) (*Field, bool) {
	f, ok := m.columns[name]
	return f, ok
}

// Lookup resolves a key by column name, JSON name or Go field name.
func (m *Model) Lookup(key string) (*Field, bool) {
	if f, ok := m.columns[key]; ok {
		return f, true
	}
	f, ok := m.aliases[key]
	return f, ok
}

// Columns returns the column names in declaration order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Of returns the description of model type T.
func Of[T any]() (*Model, error) {
	return Inspect((*T)(nil))
}

// Inspect returns the description of the model's struct type. Results are
// cached, so the same type always yields the same *Model.
func Inspect(model any) (*Model, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", t)
	}
	if m, ok := modelsMap.Load(t); ok {
		return m.(*Model), nil
	}
	m, err := newModel(t)
	if err != nil {
		return nil, err
	}
	actual, _ := modelsMap.LoadOrStore(t, m)
	return actual.(*Model), nil
}

func newModel(t reflect.Type) (*Model, error) {
	m := &Model{
		Name:    t.Name(),
		Table:   resolveTableName(t),
		Type:    t,
		columns: map[string]*Field{},
		aliases: map[string]*Field{},
	}
	collectFields(m, t, nil, "")
	if len(m.Fields) == 0 {
		return nil, fmt.Errorf("model %s has no columns", m.Name)
	}
	for _, f := range m.Fields {
		if f.PrimaryKey {
			m.PKs = append(m.PKs, f)
		}
	}
	if len(m.PKs) == 0 {
		if f, ok := m.columns["id"]; ok {
			f.PrimaryKey = true
			f.NotNull = true
			m.PKs = append(m.PKs, f)
		}
	}
	return m, nil
}

func resolveTableName(t reflect.Type) string {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !isBunBaseModel(f.Type) {
			continue
		}
		for _, part := range strings.Split(f.Tag.Get("bun"), ",") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "table:") {
				return strings.TrimPrefix(part, "table:")
			}
		}
	}
	return underscore(inflection.Plural(t.Name()))
}

func isBunBaseModel(t reflect.Type) bool {
	return t.Name() == "BaseModel" && strings.Contains(t.PkgPath(), "uptrace/bun")
}

func collectFields(m *Model, t reflect.Type, index []int, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if isBunBaseModel(sf.Type) {
			continue
		}
		if sf.PkgPath != "" && !sf.Anonymous {
			continue
		}
		tag := sf.Tag.Get("bun")
		if tag == "-" || strings.Contains(tag, "rel:") || strings.Contains(tag, "m2m:") {
			continue
		}
		parts := strings.Split(tag, ",")
		name := strings.TrimSpace(parts[0])
		opts := parts[1:]
		if strings.Contains(name, ":") {
			name, opts = "", parts
		}
		fieldIndex := append(append([]int{}, index...), i)

		if embedPrefix, ok := embedOption(opts); ok || (sf.Anonymous && tag == "") {
			if sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
				collectFields(m, sf.Type, fieldIndex, prefix+embedPrefix)
			}
			continue
		}
		if sf.PkgPath != "" || hasOption(opts, "scanonly") {
			continue
		}
		if name == "" {
			name = underscore(sf.Name)
		}
		f := &Field{
			GoName:   sf.Name,
			Column:   prefix + name,
			JSONName: jsonName(sf),
			Index:    fieldIndex,
			Nullable: sf.Type.Kind() == reflect.Ptr,
		}
		f.Type = sf.Type
		if f.Type.Kind() == reflect.Ptr {
			f.Type = f.Type.Elem()
		}
		f.Kind = kindOf(f.Type)
		for _, p := range opts {
			switch strings.TrimSpace(p) {
			case "pk":
				f.PrimaryKey = true
			case "notnull":
				f.NotNull = true
			case "autoincrement", "identity":
				f.AutoIncrement = true
			}
		}
		if f.PrimaryKey || f.AutoIncrement {
			f.NotNull = true
		}
		if ft := strings.TrimSpace(sf.Tag.Get("filter")); ft != "" {
			for _, o := range strings.Split(ft, ",") {
				f.filterTag = append(f.filterTag, strings.TrimSpace(o))
			}
		}
		m.Fields = append(m.Fields, f)
		m.columns[f.Column] = f
		if f.JSONName != "" {
			m.aliases[f.JSONName] = f
		}
		m.aliases[f.GoName] = f
	}
}

func embedOption(opts []string) (string, bool) {
	for _, p := range opts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "embed:") {
			return strings.TrimPrefix(p, "embed:"), true
		}
	}
	return "", false
}

func hasOption(opts []string, opt string) bool {
	for _, p := range opts {
		if strings.TrimSpace(p) == opt {
			return true
		}
	}
	return false
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return sf.Name
	}
	return name
}

func kindOf(t reflect.Type) Kind {
	if t == timeType {
		return KindTime
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Bool:
		return KindBool
	default:
		return KindOther
	}
}

// underscore converts a Go identifier the same way bun names columns.
func underscore(s string) string {
	r := make([]byte, 0, len(s)+5)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(c) {
			if i > 0 && i+1 < len(s) && (isLower(s[i-1]) || isLower(s[i+1])) {
				r = append(r, '_', c+32)
			} else {
				r = append(r, c+32)
			}
		} else {
			r = append(r, c)
		}
	}
	return string(r)
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
