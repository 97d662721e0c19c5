package cache

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// keyPrefix namespaces all cache keys in Redis.
const keyPrefix = "callstream:cache"

// Key identifies a cached response.
type Key struct {
	// Method is the HTTP method (default GET).
	Method string

	// Endpoint is the request path, e.g. "/v1/orders".
	Endpoint string

	// Query holds the query parameters.
	Query url.Values

	// Scope separates responses that depend on the caller, e.g. a token
	// fingerprint. Empty for public data.
	Scope string
}

// String returns a deterministic Redis key.
//
// Example:
//
//	callstream:cache:GET:v1/orders:page=2:per_page=20
func (k Key) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}

	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteByte(':')
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(strings.Trim(k.Endpoint, "/"))

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		values := slices.Clone(k.Query[name])
		slices.Sort(values)
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}

	if k.Scope != "" {
		b.WriteString(":scope=")
		b.WriteString(k.Scope)
	}

	return b.String()
}

// KeyFor builds the key for an outgoing request.
func KeyFor(req *http.Request, scope string) Key {
	return Key{
		Method:   req.Method,
		Endpoint: req.URL.Path,
		Query:    req.URL.Query(),
		Scope:    scope,
	}
}
