// Package dialect detects the database engine family behind a connection
// URL and exposes the capability checks isolation strategies depend on:
// schema support, row-level security support, and single-pool engines.
package dialect
