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

package database

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/uptrace/bun"
)

// MigrationManager creates the tables of registered models.
type MigrationManager struct {
	db        *bun.DB
	logger    Logger
	registry  ModelRegistry
	dropFirst bool
}

// NewMigrationManager constructs a MigrationManager over the default model
// registry.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	return &MigrationManager{
		db:       db,
		logger:   logger,
		registry: defaultRegistry,
	}
}

// SetRegistry replaces the model registry the manager reads from.
func (mm *MigrationManager) SetRegistry(registry ModelRegistry) {
	mm.registry = registry
}

// SetDropTablesFirst makes RunMigrations drop every table before creating it.
func (mm *MigrationManager) SetDropTablesFirst(drop bool) {
	mm.dropFirst = drop
}

// RunMigrations creates every registered table that does not exist yet, in
// priority order, inside one transaction.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}

	models := modelInstances(mm.registry.Models())
	err := mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if mm.dropFirst {
			if err := DropTables(ctx, tx, models...); err != nil {
				return err
			}
		}
		return CreateTables(ctx, tx, models...)
	})
	if err != nil {
		return err
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!", "tables", len(models))
	}
	return nil
}

// CreateTables creates the table of each model unless it already exists.
func CreateTables(ctx context.Context, db bun.IDB, models ...interface{}) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %s: %w", getModelName(model), err)
		}
	}
	return nil
}

// DropTables drops the tables of the given models in reverse order.
func DropTables(ctx context.Context, db bun.IDB, models ...interface{}) error {
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %s: %w", getModelName(models[i]), err)
		}
	}
	return nil
}

func getModelName(model interface{}) string {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
