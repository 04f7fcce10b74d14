// Package meta reads bun model declarations into static column description
// tables used for filter synthesis and payload decoding.
package meta
