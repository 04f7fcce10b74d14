// Package filters synthesizes optional filter schemas from model
// declarations and translates populated filter instances into bun predicates.
//
// For a model with columns name (text) and age (integer) the schema exposes
// name, name_like, age, age_lt and age_gt; with WithInclusiveBounds also
// age_lte and age_gte.
package filters
