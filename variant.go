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
)

// Variant is one concrete shape of a polymorphic model, selected by the value
// stored in the discriminator column. Build variants with NewVariant.
type Variant interface {
	// Identity is the discriminator value of rows of this shape.
	Identity() string
	// Type is the Go type rows are represented as.
	Type() reflect.Type

	rowType() reflect.Type
	decode(row any) any
	encode(value any) any
}

type variant[T, V any] struct {
	identity string
	decodeFn func(*T) *V
	encodeFn func(*V) *T
}

// NewVariant declares that rows of T whose discriminator equals identity are
// represented as V. decode builds the V shape from a stored row and encode
// builds the row to store from a V value; both must be pure.
func NewVariant[T, V any](identity string, decode func(*T) *V, encode func(*V) *T) Variant {
	return &variant[T, V]{identity: identity, decodeFn: decode, encodeFn: encode}
}

func (v *variant[T, V]) Identity() string { return v.identity }

func (v *variant[T, V]) Type() reflect.Type { return reflect.TypeOf((*V)(nil)).Elem() }

func (v *variant[T, V]) rowType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (v *variant[T, V]) decode(row any) any { return v.decodeFn(row.(*T)) }

// encode accepts V or *V.
func (v *variant[T, V]) encode(value any) any {
	switch x := value.(type) {
	case *V:
		return v.encodeFn(x)
	case V:
		return v.encodeFn(&x)
	}
	panic(fmt.Sprintf("variant %s: cannot encode %T", v.identity, value))
}

type polymorphism struct {
	column     string
	byIdentity map[string]Variant
	byType     map[reflect.Type]Variant
	identities []string
}

func newPolymorphism(column string, rowType reflect.Type, variants []Variant) (*polymorphism, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("polymorphic model %s declares no variants", rowType.Name())
	}
	p := &polymorphism{
		column:     column,
		byIdentity: make(map[string]Variant, len(variants)),
		byType:     make(map[reflect.Type]Variant, len(variants)),
	}
	for _, v := range variants {
		if v == nil {
			return nil, fmt.Errorf("polymorphic model %s: nil variant", rowType.Name())
		}
		if v.rowType() != rowType {
			return nil, fmt.Errorf("variant %s is declared for %s, not %s", v.Identity(), v.rowType(), rowType)
		}
		if _, dup := p.byIdentity[v.Identity()]; dup {
			return nil, fmt.Errorf("duplicate variant identity %q", v.Identity())
		}
		if _, dup := p.byType[v.Type()]; dup {
			return nil, fmt.Errorf("type %s is registered for two variants", v.Type())
		}
		p.byIdentity[v.Identity()] = v
		p.byType[v.Type()] = v
		p.identities = append(p.identities, v.Identity())
	}
	return p, nil
}

// variantOf finds the variant registered for the Go type of value.
func (p *polymorphism) variantOf(value any) (Variant, bool) {
	t := reflect.TypeOf(value)
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	v, ok := p.byType[t]
	return v, ok
}
