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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl"
	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/types"
	"github.com/tomoncle/modelctl/utils"
)

// maxBodyBytes bounds create and update request bodies.
const maxBodyBytes = 1 << 20

type options struct {
	logger       database.Logger
	eventContext func(*http.Request) map[string]any
}

type Option func(*options)

// WithLogger sets the request logger. The default is the "HANDLER" logger.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventContext sets the function building the context handed to
// processors for a request. The default records the method and path.
func WithEventContext(fn func(*http.Request) map[string]any) Option {
	return func(o *options) { o.eventContext = fn }
}

func requestContext(r *http.Request) map[string]any {
	return map[string]any{"method": r.Method, "path": r.URL.Path}
}

// Resource serves one controller over a database handle.
type Resource[T any] struct {
	controller   *modelctl.Controller[T]
	db           bun.IDB
	logger       database.Logger
	eventContext func(*http.Request) map[string]any
}

func NewResource[T any](c *modelctl.Controller[T], db bun.IDB, opts ...Option) *Resource[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = database.NewLogger("HANDLER")
	}
	if o.eventContext == nil {
		o.eventContext = requestContext
	}
	return &Resource[T]{controller: c, db: db, logger: o.logger, eventContext: o.eventContext}
}

// Mount registers the routes of c under pattern.
func Mount[T any](r chi.Router, pattern string, c *modelctl.Controller[T], db bun.IDB, opts ...Option) *Resource[T] {
	h := NewResource(c, db, opts...)
	r.Route(pattern, h.Routes)
	return h
}

// Routes registers list, get, create, update and delete on r.
func (h *Resource[T]) Routes(r chi.Router) {
	r.Use(h.logRequests)
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Resource[T]) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("Handled request",
			"model", h.controller.Name(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", utils.Since(start))
	})
}

func (h *Resource[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeError(w, err); status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "model", h.controller.Name(), "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// id reads the primary key from the URL. Composite keys are comma separated
// in key order.
func (h *Resource[T]) id(r *http.Request) any {
	raw := chi.URLParam(r, "id")
	if len(h.controller.Model().PKs) < 2 {
		return raw
	}
	parts := strings.Split(raw, ",")
	ids := make([]any, len(parts))
	for i, p := range parts {
		ids[i] = p
	}
	return ids
}

func (h *Resource[T]) decodeBody(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("invalid request body: expected a JSON object")
	}
	return body, nil
}

func (h *Resource[T]) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
}

func (h *Resource[T]) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := h.controller.FilterSchema().Parse(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var page *types.PageRequest
	if h.controller.Paginated() {
		if page, err = types.ParsePageRequest(q); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	ctx := modelctl.WithEventContext(r.Context(), h.eventContext(r))
	listing, err := h.controller.GetMany(ctx, h.db, filter, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.controller.RepresentAll(listing)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Resource[T]) Get(w http.ResponseWriter, r *http.Request) {
	ctx := modelctl.WithEventContext(r.Context(), h.eventContext(r))
	row, err := h.controller.Get(ctx, h.db, h.id(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.represent(w, r, http.StatusOK, row)
}

func (h *Resource[T]) Create(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeBody(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	ctx := modelctl.WithEventContext(r.Context(), h.eventContext(r))
	row, err := h.controller.Create(ctx, h.db, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.represent(w, r, http.StatusCreated, row)
}

func (h *Resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeBody(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	ctx := modelctl.WithEventContext(r.Context(), h.eventContext(r))
	row, err := h.controller.Update(ctx, h.db, h.id(r), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.represent(w, r, http.StatusOK, row)
}

func (h *Resource[T]) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := modelctl.WithEventContext(r.Context(), h.eventContext(r))
	deleted, err := h.controller.Delete(ctx, h.db, h.id(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Resource[T]) represent(w http.ResponseWriter, r *http.Request, status int, row *T) {
	out, err := h.controller.Represent(row)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, out)
}
