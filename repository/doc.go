// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, querying and pagination over a caller-owned handle.
package repository
