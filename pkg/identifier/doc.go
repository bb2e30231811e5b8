// Package identifier validates and derives the identifiers that flow into
// generated SQL: tenant slugs, schema names, database names, and table
// prefixes.
//
// Every name that ends up inside a DDL or DML statement must pass through
// AssertSafeSchemaName or AssertSafeDatabaseName immediately before the
// statement is built. The assert helpers reject rather than rewrite:
// silently mutating an identifier right before an identity-sensitive
// operation is the failure mode this package exists to prevent. Sanitize
// is the opposite tool: a lossy normalizer for deriving schema names and
// table prefixes from tenant slugs.
//
// Tenant slugs and SQL identifiers follow two different grammars. A slug
// like "acme-corp" is valid for URLs and headers but not for SQL; the
// derived schema name is Sanitize("acme-corp") = "acme_corp".
package identifier
