// Package modelctl builds generic CRUD controllers over bun models.
//
// A Controller derives a filter schema from its model, translates filter
// values into WHERE predicates, optionally paginates listings, represents
// rows of polymorphic models through their registered variants, and notifies
// processors after every successful operation. Every operation runs against
// the bun.IDB the caller passes in, so transactions stay under the caller's
// control.
package modelctl
