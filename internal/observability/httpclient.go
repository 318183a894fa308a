package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns an http.Client instrumented with otelhttp transport.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(rt)
	return base
}

// headerTransport injects a fixed set of headers into every outgoing
// request, without clobbering a header the caller already set.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range t.headers {
		if cloned.Header.Get(k) == "" {
			cloned.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(cloned)
}

// WithHeaders returns a client that injects the given headers into every
// request the client sends, unless the caller already set that header.
func WithHeaders(c *http.Client, headers map[string]string) *http.Client {
	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	clone := *c
	clone.Transport = &headerTransport{base: rt, headers: headers}
	return &clone
}
