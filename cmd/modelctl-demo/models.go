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

package main

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl/types"
)

type Hero struct {
	bun.BaseModel `bun:"table:heroes,alias:h"`

	ID         int64            `bun:"id,pk,autoincrement" json:"id"`
	Name       string           `bun:"name,notnull,unique" json:"name" filter:"icase"`
	SecretName string           `bun:"secret_name,notnull" json:"secret_name" filter:"-"`
	Age        *int             `bun:"age" json:"age"`
	Profile    types.JsonObject `bun:"profile" json:"profile,omitempty"`
	CreatedAt  time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Animal stores every kind of animal in one table, told apart by Kind.
type Animal struct {
	bun.BaseModel `bun:"table:animals,alias:a"`

	ID    int64   `bun:"id,pk,autoincrement" json:"id"`
	Kind  string  `bun:"kind,notnull" json:"kind"`
	Name  string  `bun:"name,notnull" json:"name"`
	Breed *string `bun:"breed" json:"breed"`
	Lives *int    `bun:"lives" json:"lives"`
}

type Dog struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Breed string `json:"breed"`
}

type Cat struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Lives int    `json:"lives"`
}

func decodeDog(a *Animal) *Dog {
	d := &Dog{ID: a.ID, Name: a.Name}
	if a.Breed != nil {
		d.Breed = *a.Breed
	}
	return d
}

func encodeDog(d *Dog) *Animal {
	return &Animal{ID: d.ID, Name: d.Name, Breed: &d.Breed}
}

func decodeCat(a *Animal) *Cat {
	c := &Cat{ID: a.ID, Name: a.Name}
	if a.Lives != nil {
		c.Lives = *a.Lives
	}
	return c
}

func encodeCat(c *Cat) *Animal {
	return &Animal{ID: c.ID, Name: c.Name, Lives: &c.Lives}
}
