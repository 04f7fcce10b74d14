// Package database provides connection management, table creation for
// registered models, query hooks, SQL error classification, configuration
// types and logging, built on top of Bun.
package database
