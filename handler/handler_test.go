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

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl"
	"github.com/tomoncle/modelctl/database"
)

type hero struct {
	bun.BaseModel `bun:"table:heroes,alias:h"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
	Age  *int   `bun:"age" json:"age"`
}

type animal struct {
	bun.BaseModel `bun:"table:animals,alias:a"`

	ID    int64   `bun:"id,pk,autoincrement" json:"id"`
	Type  string  `bun:"type,notnull" json:"type"`
	Name  string  `bun:"name,notnull" json:"name"`
	Sound *string `bun:"sound" json:"sound"`
}

type dog struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Sound string `json:"sound"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type recorder struct {
	events []modelctl.Event
}

func (r *recorder) Process(_ context.Context, e modelctl.Event) {
	r.events = append(r.events, e)
}

func newServer(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	manager := database.NewDatabaseManager(database.MemoryConfig())
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = manager.Disconnect() })
	db := manager.GetDB()
	if err := database.CreateTables(context.Background(), db, (*hero)(nil), (*animal)(nil)); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	heroes := modelctl.MustNew[hero](modelctl.WithPagination(), modelctl.WithProcessors(rec))
	animals := modelctl.MustNew[animal](modelctl.WithPolymorphism("type",
		modelctl.NewVariant("dog",
			func(a *animal) *dog { return &dog{ID: a.ID, Name: a.Name, Sound: deref(a.Sound)} },
			func(d *dog) *animal { return &animal{ID: d.ID, Name: d.Name, Sound: &d.Sound} }),
	))

	r := chi.NewRouter()
	Mount(r, "/heroes", heroes, db)
	Mount(r, "/animals", animals, db)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, rec
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestCrudRoutes(t *testing.T) {
	srv, rec := newServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/heroes", `{"name": "Deadpond", "age": 48}`)
	if status != http.StatusCreated || body["name"] != "Deadpond" {
		t.Fatalf("create: %d %v", status, body)
	}
	id := body["id"].(float64)
	url := fmt.Sprintf("%s/heroes/%d", srv.URL, int64(id))

	if status, body = do(t, http.MethodGet, url, ""); status != http.StatusOK || body["age"] != float64(48) {
		t.Errorf("get: %d %v", status, body)
	}
	if status, body = do(t, http.MethodPatch, url, `{"age": 49}`); status != http.StatusOK || body["age"] != float64(49) || body["name"] != "Deadpond" {
		t.Errorf("patch: %d %v", status, body)
	}
	if status, body = do(t, http.MethodDelete, url, ""); status != http.StatusOK || body["deleted"] != true {
		t.Errorf("delete: %d %v", status, body)
	}
	if status, _ = do(t, http.MethodGet, url, ""); status != http.StatusNotFound {
		t.Errorf("get after delete: %d", status)
	}

	if len(rec.events) == 0 || rec.events[0].Context["method"] != http.MethodPost {
		t.Errorf("expected request context on events, got %+v", rec.events)
	}
}

func TestErrorStatus(t *testing.T) {
	srv, _ := newServer(t)

	if status, _ := do(t, http.MethodPost, srv.URL+"/heroes", `{"name": "Deadpond"}`); status != http.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/heroes", `{"name": "Deadpond"}`, http.StatusConflict},
		{http.MethodPost, "/heroes", `{"name": "x", "power": "flight"}`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/heroes", `{"name": `, http.StatusBadRequest},
		{http.MethodPost, "/heroes", `null`, http.StatusBadRequest},
		{http.MethodGet, "/heroes/abc", "", http.StatusUnprocessableEntity},
		{http.MethodGet, "/heroes/999", "", http.StatusNotFound},
		{http.MethodPatch, "/heroes/1", `{"id": 2}`, http.StatusUnprocessableEntity},
		{http.MethodGet, "/heroes?age_lt=old", "", http.StatusUnprocessableEntity},
		{http.MethodGet, "/heroes?size=1000", "", http.StatusUnprocessableEntity},
		{http.MethodPost, "/animals", `{"name": "rex"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		status, body := do(t, tc.method, srv.URL+tc.path, tc.body)
		if status != tc.status {
			t.Errorf("%s %s: expected %d, got %d %v", tc.method, tc.path, tc.status, status, body)
		}
		if body["error"] == nil {
			t.Errorf("%s %s: expected an error body", tc.method, tc.path)
		}
	}
}

func TestListFiltersAndPages(t *testing.T) {
	srv, _ := newServer(t)
	for i, name := range []string{"Deadpond", "Spider-Boy", "Rusty-Man", "Tarantula", "Black Lion"} {
		body := fmt.Sprintf(`{"name": %q, "age": %d}`, name, 20+i*10)
		if status, _ := do(t, http.MethodPost, srv.URL+"/heroes", body); status != http.StatusCreated {
			t.Fatalf("seed %s: %d", name, status)
		}
	}

	status, body := do(t, http.MethodGet, srv.URL+"/heroes?size=2&page=3", "")
	if status != http.StatusOK || body["total"] != float64(5) || body["pages"] != float64(3) {
		t.Fatalf("page 3: %d %v", status, body)
	}
	if items := body["items"].([]any); len(items) != 1 || items[0].(map[string]any)["name"] != "Black Lion" {
		t.Errorf("unexpected last page %v", items)
	}

	status, body = do(t, http.MethodGet, srv.URL+"/heroes?age_lt=40&name_like=a", "")
	if status != http.StatusOK || body["total"] != float64(1) {
		t.Errorf("filtered: %d %v", status, body)
	}
}

func TestPolymorphicRepresentation(t *testing.T) {
	srv, _ := newServer(t)
	status, body := do(t, http.MethodPost, srv.URL+"/animals", `{"type": "dog", "name": "rex", "sound": "woof"}`)
	if status != http.StatusCreated || body["sound"] != "woof" {
		t.Fatalf("create: %d %v", status, body)
	}
	if _, ok := body["type"]; ok {
		t.Errorf("expected the dog representation, got %v", body)
	}

	resp, err := http.Get(srv.URL + "/animals")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("unpaginated list must be a plain array: %v", err)
	}
	if len(list) != 1 || list[0]["name"] != "rex" {
		t.Errorf("unexpected list %v", list)
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
	if got := statusFor(fmt.Errorf("wrapped: %w", modelctl.ErrNotFound)); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
}
