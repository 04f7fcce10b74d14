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

package modelctl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/uptrace/bun"

	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/filters"
	"github.com/tomoncle/modelctl/meta"
	"github.com/tomoncle/modelctl/repository"
	"github.com/tomoncle/modelctl/types"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnresolvedVariant is returned when a polymorphic input or row does
	// not map to a registered variant.
	ErrUnresolvedVariant = errors.New("cannot resolve the actual model")
	// ErrValidation matches every ValidationError.
	ErrValidation = types.ErrValidation
)

type ValidationError = types.ValidationError

// QueryMod narrows or orders the base query of a read.
type QueryMod func(q *bun.SelectQuery) *bun.SelectQuery

// Where adds a raw condition, e.g. Where("?TableAlias.name = ?", "Deadpond").
func Where(query string, args ...any) QueryMod {
	return func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where(query, args...) }
}

// Equals matches a column exactly.
func Equals(column string, value any) QueryMod {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	}
}

// Order sorts by the given "column [ASC|DESC]" expressions ahead of the
// primary key.
func Order(orders ...string) QueryMod {
	return func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order(orders...) }
}

func Limit(n int) QueryMod {
	return func(q *bun.SelectQuery) *bun.SelectQuery { return q.Limit(n) }
}

func Offset(n int) QueryMod {
	return func(q *bun.SelectQuery) *bun.SelectQuery { return q.Offset(n) }
}

type options struct {
	paginate      bool
	strict        bool
	filterOpts    []filters.SchemaOption
	discriminator string
	variants      []Variant
	processors    []Processor
	logger        database.Logger
}

type Option func(*options)

// WithPagination makes GetMany return one page of rows with page metadata.
func WithPagination() Option {
	return func(o *options) { o.paginate = true }
}

func WithFilterOptions(opts ...filters.SchemaOption) Option {
	return func(o *options) { o.filterOpts = append(o.filterOpts, opts...) }
}

// WithStrictFilters rejects filter values whose names are not in the schema
// instead of ignoring them.
func WithStrictFilters() Option {
	return func(o *options) { o.strict = true }
}

// WithPolymorphism declares the discriminator column and the closed set of
// variants stored in the model table.
func WithPolymorphism(column string, variants ...Variant) Option {
	return func(o *options) {
		o.discriminator = column
		o.variants = append(o.variants, variants...)
	}
}

func WithProcessors(processors ...Processor) Option {
	return func(o *options) { o.processors = append(o.processors, processors...) }
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Controller exposes create, read, update and delete operations for model T
// over a database handle owned by the caller.
type Controller[T any] struct {
	model    *meta.Model
	schema   *filters.Schema
	paginate bool
	strict   bool
	poly     *polymorphism
	polyCol  *meta.Field
	narrowed Variant
	logger   database.Logger

	mu         sync.RWMutex
	processors []Processor
}

// New builds a controller for the bun model T.
func New[T any](opts ...Option) (*Controller[T], error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	m, err := meta.Of[T]()
	if err != nil {
		return nil, err
	}
	if len(m.PKs) == 0 {
		return nil, fmt.Errorf("model %s has no primary key", m.Name)
	}

	c := &Controller[T]{
		model:      m,
		schema:     filters.FromModel(m, o.filterOpts...),
		paginate:   o.paginate,
		strict:     o.strict,
		logger:     o.logger,
		processors: append([]Processor(nil), o.processors...),
	}
	if c.logger == nil {
		c.logger = database.NewLogger("CONTROLLER")
	}

	if o.discriminator != "" || len(o.variants) > 0 {
		col, ok := m.Lookup(o.discriminator)
		if !ok {
			return nil, fmt.Errorf("model %s has no discriminator column %q", m.Name, o.discriminator)
		}
		c.poly, err = newPolymorphism(col.Column, m.Type, o.variants)
		if err != nil {
			return nil, err
		}
		c.polyCol = col
	}
	return c, nil
}

// MustNew is New that panics on error, for package level controllers.
func MustNew[T any](opts ...Option) *Controller[T] {
	c, err := New[T](opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Controller[T]) Name() string { return c.model.Name }

func (c *Controller[T]) Model() *meta.Model { return c.model }

func (c *Controller[T]) FilterSchema() *filters.Schema { return c.schema }

func (c *Controller[T]) Paginated() bool { return c.paginate }

// Polymorphic reports whether rows are represented through variants.
func (c *Controller[T]) Polymorphic() bool { return c.poly != nil }

// RegisterProcessor appends p to the processors notified after each
// successful operation.
func (c *Controller[T]) RegisterProcessor(p Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processors = append(c.processors, p)
}

// ForVariant returns a controller restricted to rows of one variant: reads
// only see those rows and creates default to its identity.
func (c *Controller[T]) ForVariant(identity string) (*Controller[T], error) {
	if c.poly == nil {
		return nil, fmt.Errorf("%w: %s is not polymorphic", ErrUnresolvedVariant, c.Name())
	}
	v, ok := c.poly.byIdentity[identity]
	if !ok {
		return nil, c.unresolved(identity)
	}
	c.mu.RLock()
	processors := append([]Processor(nil), c.processors...)
	c.mu.RUnlock()
	return &Controller[T]{
		model:      c.model,
		schema:     c.schema,
		paginate:   c.paginate,
		strict:     c.strict,
		poly:       c.poly,
		polyCol:    c.polyCol,
		narrowed:   v,
		logger:     c.logger,
		processors: processors,
	}, nil
}

func (c *Controller[T]) unresolved(identity any) error {
	if identity == nil || identity == "" {
		return fmt.Errorf("%w for %s", ErrUnresolvedVariant, c.Name())
	}
	return fmt.Errorf("%w for %s: unknown identity %v", ErrUnresolvedVariant, c.Name(), identity)
}

func (c *Controller[T]) notify(ctx context.Context, op OperationType, model string, data any) {
	c.mu.RLock()
	processors := c.processors
	c.mu.RUnlock()
	if len(processors) == 0 {
		return
	}
	event := Event{Operation: op, Model: model, Data: data, Context: EventContext(ctx)}
	for _, p := range processors {
		p.Process(ctx, event)
	}
}

func (c *Controller[T]) repo(db bun.IDB) repository.Repository[T] {
	return repository.NewRepository[T](db)
}

// baseQuery selects the model table, restricted to the narrowed variant.
func (c *Controller[T]) baseQuery(repo repository.Repository[T]) *bun.SelectQuery {
	q := repo.NewSelect()
	if c.narrowed != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident(c.polyCol.Column), c.narrowed.Identity())
	}
	return q
}

func (c *Controller[T]) orderByPK(q *bun.SelectQuery) *bun.SelectQuery {
	for _, pk := range c.model.PKs {
		q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(pk.Column))
	}
	return q
}

// pkArgs converts id into one value per primary key column. Composite keys
// take a []any in key order.
func (c *Controller[T]) pkArgs(id any) ([]any, error) {
	raw := []any{id}
	if len(c.model.PKs) > 1 {
		ids, ok := id.([]any)
		if !ok || len(ids) != len(c.model.PKs) {
			return nil, fmt.Errorf("%s has a composite primary key of %d columns", c.Name(), len(c.model.PKs))
		}
		raw = ids
	}
	args := make([]any, len(raw))
	verr := types.NewValidationError(c.Name())
	for i, pk := range c.model.PKs {
		v, err := pk.Convert(raw[i], true)
		if err != nil {
			verr.Add(pk.Column, err.Error())
			continue
		}
		args[i] = v.Interface()
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return args, nil
}

func (c *Controller[T]) rowPK(row *T) []any {
	rv := reflect.ValueOf(row).Elem()
	args := make([]any, len(c.model.PKs))
	for i, pk := range c.model.PKs {
		args[i] = pk.Value(rv).Interface()
	}
	return args
}

func (c *Controller[T]) fetch(ctx context.Context, repo repository.Repository[T], id any) (*T, error) {
	args, err := c.pkArgs(id)
	if err != nil {
		return nil, err
	}
	q := c.baseQuery(repo)
	for i, pk := range c.model.PKs {
		q = q.Where("?TableAlias.? = ?", bun.Ident(pk.Column), args[i])
	}
	row, err := repo.First(ctx, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, c.Name(), id)
	}
	return row, err
}

// Get returns the row with the given primary key.
func (c *Controller[T]) Get(ctx context.Context, db bun.IDB, id any) (*T, error) {
	row, err := c.fetch(ctx, c.repo(db), id)
	if err != nil {
		return nil, err
	}
	c.notify(ctx, OperationRead, c.rowModelName(row), id)
	return row, nil
}

// GetOne returns the first row, in primary key order, matching mods.
func (c *Controller[T]) GetOne(ctx context.Context, db bun.IDB, mods ...QueryMod) (*T, error) {
	repo := c.repo(db)
	q := c.baseQuery(repo)
	for _, mod := range mods {
		q = mod(q)
	}
	row, err := repo.First(ctx, c.orderByPK(q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.Name())
	}
	if err != nil {
		return nil, err
	}
	c.notify(ctx, OperationRead, c.rowModelName(row), nil)
	return row, nil
}

// GetMany lists the rows matching mods and the present filter values, in
// primary key order after any order the mods or page request impose. When
// the controller paginates, page selects the slice (nil means the first page
// of the default size); otherwise page is ignored and every row is returned.
func (c *Controller[T]) GetMany(ctx context.Context, db bun.IDB, filter filters.Values, page *types.PageRequest, mods ...QueryMod) (*types.Listing[*T], error) {
	var opts []filters.TranslateOption
	if c.strict {
		opts = append(opts, filters.Strict())
	}
	preds, err := filters.Translate(c.schema, filter, opts...)
	if err != nil {
		return nil, err
	}

	repo := c.repo(db)
	q := c.baseQuery(repo)
	for _, mod := range mods {
		q = mod(q)
	}
	q = filters.Apply(q, preds)

	var listing *types.Listing[*T]
	if c.paginate {
		if page == nil {
			page = types.NewDefaultPageRequest()
		}
		if orders := page.GetOrders(); len(orders) > 0 {
			q = q.Order(orders...)
		}
		result, err := repo.Page(ctx, c.orderByPK(q), types.NewPageRequest(page.GetPage(), page.GetPageSize()))
		if err != nil {
			return nil, err
		}
		listing = types.ListingFromPage(result)
	} else {
		rows, err := repo.Find(ctx, c.orderByPK(q))
		if err != nil {
			return nil, err
		}
		listing = types.NewListing(rows)
	}

	c.logger.Debug("Listed rows", "model", c.Name(), "predicates", len(preds), "rows", len(listing.Items))
	c.notify(ctx, OperationRead, c.modelName(), filter)
	return listing, nil
}

// Create inserts a row built from input and returns it as stored, server
// assigned columns included. input may be a *T, a registered variant value,
// a map or any struct whose fields name model columns; nil pointer fields of
// a struct are left unset.
func (c *Controller[T]) Create(ctx context.Context, db bun.IDB, input any) (*T, error) {
	row, model, err := c.buildRow(input)
	if err != nil {
		return nil, err
	}

	repo := c.repo(db)
	if err := repo.Create(ctx, row); err != nil {
		return nil, err
	}
	stored, err := repo.GetByPK(ctx, c.rowPK(row)...)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Created row", "model", model, "pk", c.rowPK(stored))
	c.notify(ctx, OperationCreate, model, input)
	return stored, nil
}

// buildRow turns a create input into a row and names the model it resolved
// to.
func (c *Controller[T]) buildRow(input any) (*T, string, error) {
	switch in := input.(type) {
	case nil:
		return nil, "", fmt.Errorf("input cannot be nil")
	case *T:
		if in == nil {
			return nil, "", fmt.Errorf("input cannot be nil")
		}
		return c.resolveRow(in)
	case T:
		return c.resolveRow(&in)
	}

	if c.poly != nil {
		if v, ok := c.poly.variantOf(input); ok {
			if reflect.ValueOf(input).Kind() == reflect.Ptr && reflect.ValueOf(input).IsNil() {
				return nil, "", fmt.Errorf("input cannot be nil")
			}
			if c.narrowed != nil && c.narrowed != v {
				return nil, "", c.unresolved(v.Identity())
			}
			row, _ := v.encode(input).(*T)
			if row == nil {
				return nil, "", fmt.Errorf("variant %s encoded a nil row", v.Identity())
			}
			if err := c.setIdentity(row, v); err != nil {
				return nil, "", err
			}
			return row, v.Type().Name(), nil
		}
	}

	p, err := toPayload(input)
	if err != nil {
		return nil, "", err
	}
	row := new(T)
	if _, err := assign(c.model, row, p, nil); err != nil {
		return nil, "", err
	}
	return c.resolveRow(row)
}

// resolveRow checks the discriminator of a polymorphic row, defaulting it to
// the narrowed variant.
func (c *Controller[T]) resolveRow(row *T) (*T, string, error) {
	if c.poly == nil {
		return row, c.Name(), nil
	}
	identity := c.identityOf(row)
	if identity == "" && c.narrowed != nil {
		if err := c.setIdentity(row, c.narrowed); err != nil {
			return nil, "", err
		}
		return row, c.narrowed.Type().Name(), nil
	}
	v, ok := c.poly.byIdentity[identity]
	if !ok || (c.narrowed != nil && c.narrowed != v) {
		return nil, "", c.unresolved(identity)
	}
	return row, v.Type().Name(), nil
}

func (c *Controller[T]) identityOf(row *T) string {
	fv := c.polyCol.Value(reflect.ValueOf(row).Elem())
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return ""
		}
		fv = fv.Elem()
	}
	if fv.IsZero() {
		return ""
	}
	return fmt.Sprint(fv.Interface())
}

func (c *Controller[T]) setIdentity(row *T, v Variant) error {
	return c.polyCol.Assign(reflect.ValueOf(row).Elem(), v.Identity(), true)
}

// Update applies input to the row with the given primary key. Only the keys
// present in input are written.
func (c *Controller[T]) Update(ctx context.Context, db bun.IDB, id any, input any) (*T, error) {
	row, err := c.fetch(ctx, c.repo(db), id)
	if err != nil {
		return nil, err
	}
	return c.UpdateObject(ctx, db, row, input)
}

// UpdateObject applies input to row, writes the changed columns and returns
// the row as stored. A *T input writes every column but the primary key.
func (c *Controller[T]) UpdateObject(ctx context.Context, db bun.IDB, row *T, input any) (*T, error) {
	if row == nil {
		return nil, fmt.Errorf("row cannot be nil")
	}
	p, err := c.updatePayload(input)
	if err != nil {
		return nil, err
	}

	// row is left untouched unless the write succeeds.
	pk := c.rowPK(row)
	cp := *row
	columns, err := assign(c.model, &cp, p, func(f *meta.Field) string {
		if f.PrimaryKey {
			return "primary key cannot be changed"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	model := c.Name()
	if c.poly != nil {
		if _, model, err = c.resolveRow(&cp); err != nil {
			return nil, err
		}
	}

	repo := c.repo(db)
	if len(columns) > 0 {
		if err := repo.Update(ctx, &cp, columns...); err != nil {
			return nil, err
		}
	}
	*row = cp
	stored, err := repo.GetByPK(ctx, pk...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, c.Name(), pk)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Updated row", "model", model, "pk", pk, "columns", columns)
	c.notify(ctx, OperationUpdate, model, input)
	return stored, nil
}

func (c *Controller[T]) updatePayload(input any) (payload, error) {
	var full *T
	switch in := input.(type) {
	case *T:
		full = in
	case T:
		full = &in
	}
	if full == nil {
		return toPayload(input)
	}
	rv := reflect.ValueOf(full).Elem()
	p := payload{}
	for _, f := range c.model.Fields {
		if !f.PrimaryKey {
			p[f.Column] = f.Value(rv).Interface()
		}
	}
	return p, nil
}

// Delete removes the row with the given primary key.
func (c *Controller[T]) Delete(ctx context.Context, db bun.IDB, id any) (bool, error) {
	row, err := c.fetch(ctx, c.repo(db), id)
	if err != nil {
		return false, err
	}
	return c.DeleteObject(ctx, db, row)
}

// DeleteObject removes row.
func (c *Controller[T]) DeleteObject(ctx context.Context, db bun.IDB, row *T) (bool, error) {
	if row == nil {
		return false, fmt.Errorf("row cannot be nil")
	}
	if err := c.repo(db).Delete(ctx, row); err != nil {
		return false, err
	}
	c.logger.Debug("Deleted row", "model", c.Name(), "pk", c.rowPK(row))
	c.notify(ctx, OperationDelete, c.rowModelName(row), row)
	return true, nil
}

// Represent returns the shape a row is exposed as: the variant selected by
// its discriminator for polymorphic controllers, the row itself otherwise.
func (c *Controller[T]) Represent(row *T) (any, error) {
	if c.poly == nil || row == nil {
		return row, nil
	}
	identity := c.identityOf(row)
	v, ok := c.poly.byIdentity[identity]
	if !ok {
		return nil, c.unresolved(identity)
	}
	return v.decode(row), nil
}

// RepresentAll represents every item of a listing, keeping its page metadata.
func (c *Controller[T]) RepresentAll(listing *types.Listing[*T]) (*types.Listing[any], error) {
	return types.MapListing(listing, c.Represent)
}

func (c *Controller[T]) modelName() string {
	if c.narrowed != nil {
		return c.narrowed.Type().Name()
	}
	return c.Name()
}

func (c *Controller[T]) rowModelName(row *T) string {
	if c.poly == nil {
		return c.Name()
	}
	if v, ok := c.poly.byIdentity[c.identityOf(row)]; ok {
		return v.Type().Name()
	}
	return c.Name()
}
