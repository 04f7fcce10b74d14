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
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/types"
)

type item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Name  string `bun:"name,notnull"`
	Stock int    `bun:"stock,notnull"`
}

func newRepo(t *testing.T) Repository[item] {
	t.Helper()
	manager := database.NewDatabaseManager(database.MemoryConfig())
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = manager.Disconnect() })
	db := manager.GetDB()
	if err := database.CreateTables(context.Background(), db, (*item)(nil)); err != nil {
		t.Fatal(err)
	}
	return NewRepository[item](db)
}

func TestCrud(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	e := &item{Name: "bolt", Stock: 3}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.ID == 0 {
		t.Fatal("expected the generated id to be set")
	}

	e.Name = "nut"
	e.Stock = 99
	if err := repo.Update(ctx, e, "stock"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByPK(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "bolt" || got.Stock != 99 {
		t.Errorf("expected only stock to be written, got %+v", got)
	}

	if err := repo.Delete(ctx, got); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByPK(ctx, e.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := repo.GetByPK(ctx, 1, 2); err == nil {
		t.Error("expected error for the wrong number of key values")
	}
}

func TestFindAndPage(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	empty, err := repo.Page(ctx, repo.NewSelect(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Total != 0 || len(empty.Items) != 0 || empty.PageSize != types.DefaultPageSize {
		t.Errorf("unexpected empty page %+v", empty)
	}

	for i := 1; i <= 5; i++ {
		if err := repo.Create(ctx, &item{Name: fmt.Sprintf("item-%d", i), Stock: i % 2}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := repo.Find(ctx, repo.NewSelect().Where("stock = ?", 1).Order("id"))
	if err != nil || len(rows) != 3 {
		t.Fatalf("expected 3 rows in stock, got %d %v", len(rows), err)
	}

	page, err := repo.Page(ctx, repo.NewSelect(), types.NewPageRequest(2, 2, "id DESC"))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || page.Pages() != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Name != "item-3" || page.Items[1].Name != "item-2" {
		t.Errorf("unexpected page items %s, %s", page.Items[0].Name, page.Items[1].Name)
	}

	first, err := repo.First(ctx, repo.NewSelect().Order("id DESC"))
	if err != nil || first.Name != "item-5" {
		t.Errorf("expected the last created item, got %+v %v", first, err)
	}
	if repo.Table().Name != "items" {
		t.Errorf("unexpected table %q", repo.Table().Name)
	}
}
