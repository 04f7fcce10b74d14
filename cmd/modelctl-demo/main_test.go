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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomoncle/modelctl/database"
)

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9000"
  paginate: false
log:
  level: debug
database:
  connection:
    type: sqlite
    dbname: from_file
    slow_query_time: 150ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MODELCTL_LOG_LEVEL", "warn")

	cfg, err := loadConfig([]string{"--config", path, "--db-name", "from_flag"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.Paginate {
		t.Errorf("expected file values, got %+v", cfg.Server)
	}
	if cfg.Server.MetricsPath != "/metrics" || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected the environment to win over the file, got %q", cfg.Log.Level)
	}
	conn := cfg.Database.ConnectionConfig
	if conn.DBName != "from_flag" || conn.SlowQueryTime != 150*time.Millisecond {
		t.Errorf("unexpected connection config %+v", conn)
	}
	if !cfg.Database.DataMigrateConfig.EnableMigrateOnStartup {
		t.Error("expected migration on startup by default")
	}

	if _, err := loadConfig([]string{"--config", filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	manager := database.NewDatabaseManager(database.MemoryConfig())
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = manager.Disconnect() })
	db := manager.GetDB()
	if err := database.CreateTables(context.Background(), db, (*Hero)(nil), (*Animal)(nil)); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(cfg, db)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestSeedAndServe(t *testing.T) {
	a := newTestApp(t)
	s, err := loadSeed("seed.yaml")
	if err != nil {
		t.Fatal(err)
	}
	n, err := a.seed(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("expected 8 seeded rows, got %d", n)
	}

	srv := httptest.NewServer(a.router())
	defer srv.Close()

	var heroes struct {
		Items []Hero `json:"items"`
		Total int    `json:"total"`
	}
	getJSON(t, srv.URL+"/heroes?name_like=MAN&size=10", &heroes)
	if heroes.Total != 1 || heroes.Items[0].Name != "Rusty-Man" {
		t.Fatalf("expected a case-insensitive match, got %+v", heroes)
	}
	if heroes.Items[0].Profile["suit"] != "rusty" {
		t.Errorf("expected the JSON profile to round trip, got %v", heroes.Items[0].Profile)
	}

	var animals struct {
		Items []map[string]any `json:"items"`
	}
	getJSON(t, srv.URL+"/animals", &animals)
	if len(animals.Items) != 3 {
		t.Fatalf("expected 3 animals, got %d", len(animals.Items))
	}
	if animals.Items[0]["breed"] != "beagle" || animals.Items[1]["lives"] != float64(9) {
		t.Errorf("expected dog and cat representations, got %v", animals.Items)
	}
	if _, ok := animals.Items[1]["breed"]; ok {
		t.Errorf("cat must not expose dog fields, got %v", animals.Items[1])
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`modelctl_operations_total{model="Hero",operation="CREATE"} 5`,
		`modelctl_operations_total{model="Cat",operation="CREATE"} 1`,
		`modelctl_operations_total{model="Dog",operation="CREATE"} 2`,
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestSeedRollsBack(t *testing.T) {
	a := newTestApp(t)
	s := &Seed{
		Heroes:  []map[string]any{{"name": "Deadpond", "secret_name": "Dive Wilson"}},
		Animals: []map[string]any{{"kind": "fish", "name": "Nemo"}},
	}
	if _, err := a.seed(context.Background(), s); err == nil {
		t.Fatal("expected an unknown kind to fail the seed")
	}
	count, err := a.db.NewSelect().Model((*Hero)(nil)).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected the transaction to roll back, found %d heroes", count)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}
