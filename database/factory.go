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
	"slices"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig constructs a database manager from the given connection
// configuration, applying environment overrides and setting the factory logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	f.overrideFromEnv(cfg)

	if !slices.Contains(supportedTypes, cfg.Type) {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)

	f.manager = manager
	return manager, nil
}

type envBinding struct {
	key   string
	apply func(cfg *ConnectionConfig, value string) error
}

func stringEnv(set func(*ConnectionConfig, string)) func(*ConnectionConfig, string) error {
	return func(cfg *ConnectionConfig, v string) error {
		set(cfg, v)
		return nil
	}
}

func intEnv(set func(*ConnectionConfig, int)) func(*ConnectionConfig, string) error {
	return func(cfg *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(cfg, n)
		return nil
	}
}

func secondsEnv(set func(*ConnectionConfig, time.Duration)) func(*ConnectionConfig, string) error {
	return intEnv(func(cfg *ConnectionConfig, n int) { set(cfg, time.Duration(n)*time.Second) })
}

func boolEnv(set func(*ConnectionConfig, bool)) func(*ConnectionConfig, string) error {
	return func(cfg *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}
}

var envBindings = []envBinding{
	{"DB_TYPE", stringEnv(func(c *ConnectionConfig, v string) { c.Type = v })},
	{"DB_HOST", stringEnv(func(c *ConnectionConfig, v string) { c.Host = v })},
	{"DB_PORT", intEnv(func(c *ConnectionConfig, n int) { c.Port = n })},
	{"DB_USERNAME", stringEnv(func(c *ConnectionConfig, v string) { c.Username = v })},
	{"DB_PASSWORD", stringEnv(func(c *ConnectionConfig, v string) { c.Password = v })},
	{"DB_NAME", stringEnv(func(c *ConnectionConfig, v string) { c.DBName = v })},
	{"DB_SSLMODE", stringEnv(func(c *ConnectionConfig, v string) { c.SSLMode = v })},
	{"DB_MAX_IDLE_CONNS", intEnv(func(c *ConnectionConfig, n int) { c.MaxIdleConns = n })},
	{"DB_MAX_OPEN_CONNS", intEnv(func(c *ConnectionConfig, n int) { c.MaxOpenConns = n })},
	{"DB_CONN_MAX_LIFETIME", secondsEnv(func(c *ConnectionConfig, d time.Duration) { c.ConnMaxLifetime = d })},
	{"DB_ENABLE_RECONNECT", boolEnv(func(c *ConnectionConfig, b bool) { c.EnableReconnect = b })},
	{"DB_RECONNECT_INTERVAL", secondsEnv(func(c *ConnectionConfig, d time.Duration) { c.ReconnectInterval = d })},
	{"DB_ENABLE_QUERY_LOG", boolEnv(func(c *ConnectionConfig, b bool) { c.EnableQueryLog = b })},
}

// overrideFromEnv overrides configuration values from environment variables.
// Malformed values are logged and ignored.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil && f.logger != nil {
			f.logger.Warn("Ignoring malformed database environment variable", "key", b.key, "error", err)
		}
	}
}

// InitializeDatabase connects to the database and, when enabled, creates the
// tables of the registered models.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, migrate DataMigrateConfig) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate.EnableMigrateOnStartup {
		mm := NewMigrationManager(f.manager.GetDB(), f.logger)
		mm.SetDropTablesFirst(migrate.DropTablesFirst)
		if err := mm.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

// Close closes the database connection managed by the factory.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
