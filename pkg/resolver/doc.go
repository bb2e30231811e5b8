// Package resolver implements the strategies that map an HTTP request to
// a tenant: header, subdomain, URL path, and JWT bearer token. Every
// resolver validates the extracted identifier before touching the
// directory, so malformed input is rejected without a lookup. Resolvers
// satisfy tenant.Resolver and compose with NewComposite for fallback
// chains.
package resolver
