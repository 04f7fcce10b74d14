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
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Convert turns raw into a value of the field's Go type (pointers removed).
// Weak conversion also parses strings, which is what query parameters need.
func (f *Field) Convert(raw any, weak bool) (reflect.Value, error) {
	if raw == nil {
		return reflect.Value{}, fmt.Errorf("value is required")
	}
	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("value is required")
		}
		raw = rv.Elem().Interface()
	}
	if (f.Kind == KindInt || f.Kind == KindUint) && hasFraction(raw) {
		return reflect.Value{}, fmt.Errorf("expected %s, got fractional number %v", f.Kind, raw)
	}
	// Numbers are decoded at full width and narrowed after a range check;
	// mapstructure would silently truncate them.
	wide := widen(f.Type)
	out := reflect.New(wide)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToTimeHook,
		WeaklyTypedInput: weak,
		Result:           out.Interface(),
	})
	if err != nil {
		return reflect.Value{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return reflect.Value{}, fmt.Errorf("expected %s, got %v", f.Kind, describe(raw))
	}
	v := out.Elem()
	if wide == f.Type {
		return v, nil
	}
	if overflows(f.Type, v) {
		return reflect.Value{}, fmt.Errorf("value %v out of range for %s", v.Interface(), f.Type)
	}
	return v.Convert(f.Type), nil
}

var (
	int64Type   = reflect.TypeOf(int64(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float64Type = reflect.TypeOf(float64(0))
)

func widen(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int64Type
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uint64Type
	case reflect.Float32, reflect.Float64:
		return float64Type
	}
	return t
}

func overflows(t reflect.Type, v reflect.Value) bool {
	zero := reflect.New(t).Elem()
	switch v.Kind() {
	case reflect.Int64:
		return zero.OverflowInt(v.Int())
	case reflect.Uint64:
		return zero.OverflowUint(v.Uint())
	case reflect.Float64:
		return zero.OverflowFloat(v.Float())
	}
	return false
}

// Assign converts raw and stores it into the field of row, allocating the
// pointer for nullable columns. A nil raw clears nullable columns.
func (f *Field) Assign(row reflect.Value, raw any, weak bool) error {
	dst := f.Value(row)
	if isNil(raw) {
		if !f.Nullable {
			return fmt.Errorf("must not be null")
		}
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v, err := f.Convert(raw, weak)
	if err != nil {
		return err
	}
	if f.Nullable {
		p := reflect.New(f.Type)
		p.Elem().Set(v)
		dst.Set(p)
		return nil
	}
	dst.Set(v)
	return nil
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as time", s)
}

func hasFraction(raw any) bool {
	switch v := raw.(type) {
	case float32:
		return float64(v) != math.Trunc(float64(v))
	case float64:
		return v != math.Trunc(v)
	}
	return false
}

func isNil(raw any) bool {
	if raw == nil {
		return true
	}
	rv := reflect.ValueOf(raw)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func describe(raw any) string {
	if s, ok := raw.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%T", raw)
}
