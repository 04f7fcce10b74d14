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
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl"
	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/handler"
	"github.com/tomoncle/modelctl/processors"
	"github.com/tomoncle/modelctl/utils"
)

type app struct {
	cfg      *Config
	db       *bun.DB
	registry *prometheus.Registry
	heroes   *modelctl.Controller[Hero]
	animals  *modelctl.Controller[Animal]
}

func newApp(cfg *Config, db *bun.DB) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := processors.NewMetricsProcessor(registry, "modelctl")
	if err != nil {
		return nil, err
	}
	events := processors.NewLoggingProcessor(utils.NewLogger("EVENTS"))

	opts := []modelctl.Option{modelctl.WithProcessors(events, metrics)}
	if cfg.Server.Paginate {
		opts = append(opts, modelctl.WithPagination())
	}
	heroes, err := modelctl.New[Hero](opts...)
	if err != nil {
		return nil, err
	}
	animals, err := modelctl.New[Animal](append(opts,
		modelctl.WithPolymorphism("kind",
			modelctl.NewVariant("dog", decodeDog, encodeDog),
			modelctl.NewVariant("cat", decodeCat, encodeCat),
		))...)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, db: db, registry: registry, heroes: heroes, animals: animals}, nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Handle(a.cfg.Server.MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		health := database.GetHealthStatus(req.Context())
		if !health.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"health": health,
			"stats":  database.GetDatabaseStats(),
		})
	})

	handler.Mount(r, "/heroes", a.heroes, a.db)
	handler.Mount(r, "/animals", a.animals, a.db)
	return r
}
