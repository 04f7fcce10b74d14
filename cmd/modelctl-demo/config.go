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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tomoncle/modelctl/database"
)

// Config is the demo server configuration. Values come from, in increasing
// priority: defaults, the YAML config file, MODELCTL_ environment variables
// and command line flags.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Database database.Config `mapstructure:"database"`
	SeedFile string          `mapstructure:"seed_file"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	Paginate        bool          `mapstructure:"paginate"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.paginate", true)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("seed_file", "")

	def := database.DefaultConnectionConfig()
	v.SetDefault("database.connection.type", "sqlite")
	v.SetDefault("database.connection.dbname", ":memory:")
	v.SetDefault("database.connection.host", "localhost")
	v.SetDefault("database.connection.port", 0)
	v.SetDefault("database.connection.username", "")
	v.SetDefault("database.connection.password", "")
	v.SetDefault("database.connection.sslmode", "disable")
	v.SetDefault("database.connection.max_idle_conns", 1)
	v.SetDefault("database.connection.max_open_conns", 1)
	v.SetDefault("database.connection.conn_max_lifetime", def.ConnMaxLifetime)
	v.SetDefault("database.connection.connect_timeout", def.ConnectTimeout)
	v.SetDefault("database.connection.enable_query_log", false)
	v.SetDefault("database.connection.query_log_format", "bundebug")
	v.SetDefault("database.connection.slow_query_time", def.SlowQueryTime)
	v.SetDefault("database.migrate.enable_migrate_on_startup", true)
	v.SetDefault("database.migrate.drop_tables_first", false)
}

// loadConfig parses args and merges every configuration source.
func loadConfig(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("modelctl-demo", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.String("addr", "", "listen address")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("seed", "", "YAML file with rows to insert on startup")
	fs.String("db-type", "", "database type: sqlite, mysql or postgres")
	fs.String("db-name", "", "database name, or sqlite file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MODELCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.address":             "addr",
		"log.level":                  "log-level",
		"seed_file":                  "seed",
		"database.connection.type":   "db-type",
		"database.connection.dbname": "db-name",
	} {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
