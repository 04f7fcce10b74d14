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

package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest describes the requested page and ordering.
type PageRequest struct {
	page     int
	pageSize int
	orders   []string // "id ASC", "name DESC"
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = DefaultPage
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

// NewPageRequest constructs a PageRequest with ordering settings.
func NewPageRequest(page int, pageSize int, orders ...string) *PageRequest {
	return &PageRequest{page, pageSize, orders}
}

// NewDefaultPageRequest constructs a PageRequest for the first page with the default size.
func NewDefaultPageRequest() *PageRequest {
	return NewPageRequest(DefaultPage, DefaultPageSize)
}

// ParsePageRequest reads the `page` and `size` query parameters. Missing
// parameters take their defaults; page must be >= 1 and size in 1..MaxPageSize.
func ParsePageRequest(q url.Values) (*PageRequest, error) {
	verr := NewValidationError("Params")
	page, size := DefaultPage, DefaultPageSize
	if s := strings.TrimSpace(q.Get("page")); s != "" {
		v, err := strconv.Atoi(s)
		switch {
		case err != nil:
			verr.Add("page", "must be an integer")
		case v < 1:
			verr.Add("page", "must be greater than or equal to 1")
		default:
			page = v
		}
	}
	if s := strings.TrimSpace(q.Get("size")); s != "" {
		v, err := strconv.Atoi(s)
		switch {
		case err != nil:
			verr.Add("size", "must be an integer")
		case v < 1 || v > MaxPageSize:
			verr.Add("size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
		default:
			size = v
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return NewPageRequest(page, size), nil
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// Pages returns the number of pages needed for Total items.
func (p *Pagination[T]) Pages() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}

// PageMeta is the page metadata reported next to paginated items.
type PageMeta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Listing is the result of a list call. Page is nil when the caller did not
// paginate, in which case Items holds the full ordered sequence.
type Listing[E any] struct {
	Items []E
	Page  *PageMeta
}

// NewListing wraps a plain sequence.
func NewListing[E any](items []E) *Listing[E] {
	if items == nil {
		items = make([]E, 0)
	}
	return &Listing[E]{Items: items}
}

// ListingFromPage converts a repository page into a paginated listing.
func ListingFromPage[T any](p *Pagination[T]) *Listing[*T] {
	l := NewListing(p.Items)
	l.Page = &PageMeta{Page: p.Page, Size: p.PageSize, Total: p.Total, Pages: p.Pages()}
	return l
}

// MapListing converts every item while keeping the page metadata.
func MapListing[E, R any](l *Listing[E], fn func(E) (R, error)) (*Listing[R], error) {
	out := &Listing[R]{Items: make([]R, 0, len(l.Items)), Page: l.Page}
	for _, item := range l.Items {
		r, err := fn(item)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, r)
	}
	return out, nil
}

// MarshalJSON writes a plain array for unpaginated listings and an object
// with items and page metadata otherwise.
func (l Listing[E]) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = make([]E, 0)
	}
	if l.Page == nil {
		return json.Marshal(items)
	}
	return json.Marshal(struct {
		Items []E `json:"items"`
		PageMeta
	}{items, *l.Page})
}
