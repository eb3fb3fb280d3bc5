// Package pg provides PostgreSQL connection management with retry logic,
// health checks, and goose-based schema migrations on top of pgxpool.
package pg
