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
	"errors"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/modelctl/types"
)

// ErrUnknownField is returned by strict translation for names the schema does not define.
var ErrUnknownField = errors.New("unknown filter field")

var sqlOperators = map[Operator]string{
	OpEq:   "=",
	OpLt:   "<",
	OpGt:   ">",
	OpLte:  "<=",
	OpGte:  ">=",
	OpLike: "LIKE",
}

// Predicate is a single condition produced from one filter field.
type Predicate struct {
	Field           string
	Column          string
	Op              Operator
	Value           any
	CaseInsensitive bool
}

func (p Predicate) String() string {
	if p.Op == OpLike {
		return fmt.Sprintf("%s %s '%%%v%%'", p.Column, sqlOperators[p.Op], p.Value)
	}
	return fmt.Sprintf("%s %s %v", p.Column, sqlOperators[p.Op], p.Value)
}

type translateOptions struct {
	strict bool
}

// TranslateOption customizes translation.
type TranslateOption func(*translateOptions)

// Strict makes Translate fail on names that are not schema fields instead of
// ignoring them.
func Strict() TranslateOption {
	return func(o *translateOptions) { o.strict = true }
}

// Translate maps every present field of v to a predicate, in schema order.
// Exact and range fields on the same column are all kept and AND-combined.
func Translate(s *Schema, v Values, opts ...TranslateOption) ([]Predicate, error) {
	o := &translateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.strict {
		var unknown []string
		for name := range v {
			if !s.Has(name) {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, fmt.Errorf("%w for %s: %v", ErrUnknownField, s.Name(), unknown)
		}
	}
	preds := make([]Predicate, 0, len(v))
	for _, f := range s.fields {
		if !v.Present(f.Name) {
			continue
		}
		preds = append(preds, Predicate{
			Field:           f.Name,
			Column:          f.Column,
			Op:              f.Op,
			Value:           v[f.Name],
			CaseInsensitive: f.CaseInsensitive,
		})
	}
	return preds, nil
}

// Apply adds the predicates to q, qualified by the model's table alias;
// bun joins consecutive Where calls with AND.
func Apply(q *bun.SelectQuery, preds []Predicate) *bun.SelectQuery {
	for _, p := range preds {
		col := bun.Ident(p.Column)
		if p.Op != OpLike {
			q = q.Where("?TableAlias.? "+sqlOperators[p.Op]+" ?", col, p.Value)
			continue
		}
		pattern := fmt.Sprintf("%%%v%%", p.Value)
		switch {
		case !p.CaseInsensitive:
			q = q.Where("?TableAlias.? LIKE ?", col, pattern)
		case q.Dialect().Name() == dialect.PG:
			q = q.Where("?TableAlias.? ILIKE ?", col, pattern)
		default:
			q = q.Where("LOWER(?TableAlias.?) LIKE LOWER(?)", col, pattern)
		}
	}
	return q
}

func sortFieldErrors(verr *types.ValidationError) {
	sort.SliceStable(verr.Errors, func(i, j int) bool {
		return verr.Errors[i].Field < verr.Errors[j].Field
	})
}
