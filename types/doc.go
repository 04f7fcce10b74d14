// Package types holds the pagination utility types, listing results, input
// validation errors and column helper types shared by controllers.
package types
