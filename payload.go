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

package modelctl

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/modelctl/meta"
	"github.com/tomoncle/modelctl/types"
)

// payload is a create or update input flattened to keys and values. Keys are
// resolved against the model by column, JSON or Go field name.
type payload map[string]any

// toPayload flattens a map or struct input. Nil pointer fields are left out,
// so optional fields of an update struct only apply when set.
func toPayload(input any) (payload, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	switch in := input.(type) {
	case map[string]any:
		return payload(in), nil
	case payload:
		return in, nil
	}

	rv := reflect.ValueOf(input)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("input cannot be nil")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		out := payload{}
		flattenStruct(rv, out)
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(payload, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported input type %T", input)
}

func flattenStruct(rv reflect.Value, out payload) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := rv.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("json") == "" {
			if sf.Type.Name() == "BaseModel" {
				continue
			}
			flattenStruct(fv, out)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name := payloadKey(sf)
		if name == "-" {
			continue
		}
		if fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface {
			if fv.IsNil() {
				continue
			}
		}
		out[name] = fv.Interface()
	}
}

func payloadKey(sf reflect.StructField) string {
	if tag, ok := sf.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return sf.Name
}

// assign decodes every key of p onto row and returns the touched columns in
// model order. Each problem becomes a field error of one ValidationError.
func assign(m *meta.Model, row any, p payload, skip func(*meta.Field) string) ([]string, error) {
	rv := reflect.ValueOf(row).Elem()
	verr := types.NewValidationError(m.Name)
	touched := map[string]bool{}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := m.Lookup(key)
		if !ok {
			verr.Add(key, "unknown field")
			continue
		}
		if skip != nil {
			if msg := skip(f); msg != "" {
				verr.Add(key, msg)
				continue
			}
		}
		if touched[f.Column] {
			verr.Add(key, "given more than once")
			continue
		}
		if err := f.Assign(rv, p[key], false); err != nil {
			verr.Add(key, err.Error())
			continue
		}
		touched[f.Column] = true
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(touched))
	for _, f := range m.Fields {
		if touched[f.Column] {
			columns = append(columns, f.Column)
		}
	}
	return columns, nil
}
