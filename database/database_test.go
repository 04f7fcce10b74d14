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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Code string `bun:"code,notnull,unique"`
}

type gadget struct {
	bun.BaseModel `bun:"table:gadgets,alias:g"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Label string `bun:"label"`
}

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) SetLevel(LogLevel) {}

func (l *captureLogger) record(level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprint(level, " ", msg, " ", fields))
}

func (l *captureLogger) Debug(msg string, fields ...interface{}) { l.record("DEBUG", msg, fields...) }
func (l *captureLogger) Info(msg string, fields ...interface{})  { l.record("INFO", msg, fields...) }
func (l *captureLogger) Warn(msg string, fields ...interface{})  { l.record("WARN", msg, fields...) }
func (l *captureLogger) Error(msg string, fields ...interface{}) { l.record("ERROR", msg, fields...) }

func openMemory(t *testing.T) AbstractDatabaseManager {
	t.Helper()
	manager := NewDatabaseManager(MemoryConfig())
	manager.SetLogger(&captureLogger{})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = manager.Disconnect() })
	return manager
}

func TestMemoryConnection(t *testing.T) {
	manager := openMemory(t)
	ctx := context.Background()
	if err := manager.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	status := manager.HealthCheck(ctx)
	if !status.Healthy || !status.Connected {
		t.Errorf("expected healthy status, got %+v", status)
	}
	if stats := manager.GetStats(); stats.MaxOpenConns != 1 {
		t.Errorf("expected a single connection, got %+v", stats)
	}
}

func TestCreateAndDropTables(t *testing.T) {
	db := openMemory(t).GetDB()
	ctx := context.Background()
	if err := CreateTables(ctx, db, (*widget)(nil), (*gadget)(nil)); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := CreateTables(ctx, db, (*widget)(nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.NewInsert().Model(&widget{Code: "a"}).Exec(ctx); err != nil {
		t.Fatal(err)
	}
	if err := DropTables(ctx, db, (*widget)(nil), (*gadget)(nil)); err != nil {
		t.Fatal(err)
	}
	_, err := db.NewSelect().Model((*widget)(nil)).Count(ctx)
	if is, code := IsSqlError(err); !is || code != NoTableErr {
		t.Errorf("expected NoTableErr, got %v %v", code, err)
	}
}

func TestMigrationManagerUsesRegistryOrder(t *testing.T) {
	db := openMemory(t).GetDB()
	registry := NewModelRegistry()
	registry.Register(NewModelAdapter((*gadget)(nil), 20))
	registry.Register(NewModelAdapter((*widget)(nil), 10))
	models := registry.Models()
	if getModelName(models[0].Instance()) != "widget" || getModelName(models[1].Instance()) != "gadget" {
		t.Fatalf("unexpected order %v", modelInstances(models))
	}

	logger := &captureLogger{}
	mm := NewMigrationManager(db, logger)
	mm.SetRegistry(registry)
	mm.SetDropTablesFirst(true)
	if err := mm.RunMigrations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, err := db.NewSelect().Model((*gadget)(nil)).Count(context.Background()); err != nil || n != 0 {
		t.Errorf("expected empty gadgets table, got %d %v", n, err)
	}
	if len(logger.entries) != 1 || !strings.Contains(logger.entries[0], "migrations completed") {
		t.Errorf("unexpected log entries %v", logger.entries)
	}
}

func TestIsSqlError(t *testing.T) {
	db := openMemory(t).GetDB()
	ctx := context.Background()
	if err := CreateTables(ctx, db, (*widget)(nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.NewInsert().Model(&widget{Code: "dup"}).Exec(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := db.NewInsert().Model(&widget{Code: "dup"}).Exec(ctx)
	if is, code := IsSqlError(err); !is || code != DuplicateKeyErr || !code.IsConstraintViolation() {
		t.Errorf("expected duplicate key, got %v (%v)", code, err)
	}

	_, err = db.ExecContext(ctx, "INSERT INTO widgets (id, code) VALUES (99, NULL)")
	if is, code := IsSqlError(err); !is || code != NotNullViolationErr {
		t.Errorf("expected not null violation, got %v (%v)", code, err)
	}

	err = db.NewSelect().Model(new(widget)).Where("code = ?", "missing").Scan(ctx)
	if is, code := IsSqlError(err); !is || code != NoRowsErr {
		t.Errorf("expected no rows, got %v (%v)", code, err)
	}

	if is, _ := IsSqlError(errors.New("connection refused")); is {
		t.Error("unrelated errors must not be classified")
	}
	if is, _ := IsSqlError(nil); is {
		t.Error("nil must not be classified")
	}
	if DuplicateKeyErr.String() != "duplicate key" || SQLError(999).String() != "unknown" {
		t.Error("unexpected error names")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")

	logger := &captureLogger{}
	f := &BaseDatabaseFactory{logger: logger}
	cfg := DefaultConnectionConfig()
	cfg.Type = "postgres"
	if _, err := f.CreateFromConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "db.internal" || cfg.Port != 6543 || cfg.ConnMaxLifetime != 30*time.Second || !cfg.EnableQueryLog {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.MaxOpenConns != 100 || len(logger.entries) != 1 {
		t.Errorf("expected malformed value to be ignored and logged, got %d %v", cfg.MaxOpenConns, logger.entries)
	}

	if _, err := f.CreateFromConfig(&ConnectionConfig{Type: "oracle"}); err == nil {
		t.Error("expected unsupported type error")
	}
}

func TestInitDBWithMigration(t *testing.T) {
	RegisteredModel(NewModelAdapter((*gadget)(nil), 1))
	cfg := &Config{
		ConnectionConfig:  *MemoryConfig(),
		DataMigrateConfig: DataMigrateConfig{EnableMigrateOnStartup: true},
	}
	db, err := InitDB(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = CloseDB() }()
	if GetDB() != db || GetDatabaseManager() == nil {
		t.Fatal("expected the global database to be set")
	}
	ctx := context.Background()
	if _, err := db.NewInsert().Model(&gadget{Label: "g1"}).Exec(ctx); err != nil {
		t.Fatalf("expected gadgets table to exist: %v", err)
	}
	if n, err := db.NewSelect().Model((*gadget)(nil)).Count(ctx); err != nil || n != 1 {
		t.Errorf("expected one gadget, got %d %v", n, err)
	}
	if !GetHealthStatus(ctx).Healthy {
		t.Error("expected a healthy database")
	}
}

func TestSlowQueryHook(t *testing.T) {
	logger := &captureLogger{}
	hook := NewSlowQueryHook(0, logger)
	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     "SELECT 1",
		StartTime: time.Now().Add(-time.Millisecond),
	})
	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     "SELECT 2",
		StartTime: time.Now().Add(-time.Millisecond),
		Err:       sql.ErrNoRows,
	})
	if len(logger.entries) != 1 || !strings.Contains(logger.entries[0], "slow query") {
		t.Errorf("expected one slow query warning, got %v", logger.entries)
	}
}

func TestToFields(t *testing.T) {
	fields := toFields([]interface{}{"id", 1, "model", "hero", "dangling"})
	if fields["id"] != 1 || fields["model"] != "hero" || fields["extra"] != "dangling" {
		t.Errorf("unexpected fields %v", fields)
	}
}
