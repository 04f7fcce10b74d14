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

package repository

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/modelctl/types"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	// GetByPK loads one row by its primary key values, in primary key
	// column order. It returns sql.ErrNoRows when nothing matches.
	GetByPK(ctx context.Context, pk ...any) (*T, error)

	Find(ctx context.Context, query *bun.SelectQuery) ([]*T, error)

	First(ctx context.Context, query *bun.SelectQuery) (*T, error)

	Create(ctx context.Context, entity *T) error

	// Update writes the given columns of entity, or every column when none
	// are named, matching the row by primary key.
	Update(ctx context.Context, entity *T, columns ...string) error

	Delete(ctx context.Context, entity *T) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, query *bun.SelectQuery, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD and pagination and exposes the Bun query builders
// bound to the same handle for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	DB() bun.IDB
	Dialect() schema.Dialect
	Table() *schema.Table
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
