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
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/uptrace/bun"
)

type hero struct {
	bun.BaseModel `bun:"table:heroes,alias:h"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	SecretName string    `json:"secret_name"`
	Age        *int      `bun:"age" json:"age"`
	Score      float64   `bun:"score" json:"score"`
	Active     bool      `bun:"active" json:"active"`
	BornAt     time.Time `bun:"born_at" json:"born_at"`
	Tags       []string  `bun:"tags,array" json:"tags"`
	Team       *team     `bun:"rel:belongs-to,join:team_id=id" json:"-"`
	Ignored    string    `bun:"-"`
	Computed   int       `bun:"computed,scanonly"`
	internal   string
}

type team struct {
	ID int64 `bun:",pk"`
}

type Timestamps struct {
	CreatedAt time.Time `bun:"created_at"`
}

type withEmbedded struct {
	ID int64 `bun:"id,pk"`
	Timestamps
	Audit Timestamps `bun:"embed:audit_"`
}

type Sample struct {
	ID int64
}

func TestInspectHero(t *testing.T) {
	m, err := Inspect(&hero{})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if m.Table != "heroes" {
		t.Errorf("expected table heroes, got %s", m.Table)
	}
	want := []string{"id", "name", "secret_name", "age", "score", "active", "born_at", "tags"}
	got := m.Columns()
	if len(got) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if len(m.PKs) != 1 || m.PKs[0].Column != "id" {
		t.Fatalf("expected primary key id, got %v", m.PKs)
	}

	kinds := map[string]Kind{
		"id":      KindInt,
		"name":    KindString,
		"age":     KindInt,
		"score":   KindFloat,
		"active":  KindBool,
		"born_at": KindTime,
		"tags":    KindOther,
	}
	for col, k := range kinds {
		f, ok := m.Column(col)
		if !ok {
			t.Fatalf("missing column %s", col)
		}
		if f.Kind != k {
			t.Errorf("column %s: expected kind %s, got %s", col, k, f.Kind)
		}
	}
	age, _ := m.Column("age")
	if !age.Nullable {
		t.Error("expected age to be nullable")
	}
	if f, ok := m.Lookup("SecretName"); !ok || f.Column != "secret_name" {
		t.Errorf("expected Go name lookup to resolve secret_name, got %v", f)
	}
}

func TestInspectIsCached(t *testing.T) {
	a, err := Of[hero]()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Inspect(hero{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same description for the same type")
	}
}

func TestInspectEmbedded(t *testing.T) {
	m, err := Inspect((*withEmbedded)(nil))
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{"id", "created_at", "audit_created_at"} {
		if _, ok := m.Column(col); !ok {
			t.Errorf("missing column %s in %v", col, m.Columns())
		}
	}
}

func TestInspectDefaults(t *testing.T) {
	m, err := Inspect(Sample{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Table != "samples" {
		t.Errorf("expected derived table samples, got %s", m.Table)
	}
	if len(m.PKs) != 1 || m.PKs[0].Column != "id" {
		t.Errorf("expected id to be the implicit primary key")
	}
}

func TestInspectRejectsNonStruct(t *testing.T) {
	if _, err := Inspect(42); err == nil {
		t.Error("expected error for non-struct model")
	}
	if _, err := Inspect(nil); err == nil {
		t.Error("expected error for nil model")
	}
}

func TestUnderscore(t *testing.T) {
	cases := map[string]string{
		"ID":          "id",
		"SecretName":  "secret_name",
		"ExtraFieldA": "extra_fielda",
		"HTTPServer":  "http_server",
	}
	for in, want := range cases {
		if got := underscore(in); got != want {
			t.Errorf("underscore(%q) = %q, want %q", in, got, want)
		}
	}
}

type gauge struct {
	ID    int64   `bun:"id,pk"`
	Small int8    `bun:"small"`
	Count *uint16 `bun:"count"`
	Ratio float32 `bun:"ratio"`
}

func TestConvertRange(t *testing.T) {
	m, err := Inspect(&gauge{})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		column string
		raw    any
		weak   bool
		want   any
		fails  bool
	}{
		{"small", 127, false, int8(127), false},
		{"small", -128, false, int8(-128), false},
		{"small", 300, false, nil, true},
		{"small", json.Number("128"), false, nil, true},
		{"small", "300", true, nil, true},
		{"count", 65535, false, uint16(65535), false},
		{"count", 70000, false, nil, true},
		{"count", -1, false, nil, true},
		{"ratio", 1.5, false, float32(1.5), false},
		{"ratio", 1e300, false, nil, true},
		{"id", int64(1) << 62, false, int64(1) << 62, false},
	}
	for _, tc := range cases {
		f, _ := m.Column(tc.column)
		v, err := f.Convert(tc.raw, tc.weak)
		if tc.fails {
			if err == nil {
				t.Errorf("%s=%v: expected a range error, got %v", tc.column, tc.raw, v.Interface())
			}
			continue
		}
		if err != nil {
			t.Errorf("%s=%v: unexpected error %v", tc.column, tc.raw, err)
			continue
		}
		if v.Interface() != tc.want {
			t.Errorf("%s=%v: expected %#v, got %#v", tc.column, tc.raw, tc.want, v.Interface())
		}
	}

	row := reflect.ValueOf(&gauge{}).Elem()
	f, _ := m.Column("small")
	if err := f.Assign(row, 1000, false); err == nil {
		t.Error("expected assign to reject an out of range value")
	}
	if row.Interface().(gauge).Small != 0 {
		t.Error("a rejected value must not be stored")
	}
}
