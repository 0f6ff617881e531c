package couchdb

import "net/http"

// WithRoundTripper sets the HTTP round tripper used by the client.
func WithRoundTripper(rt http.RoundTripper) Options {
	return func(o *options) {
		o.roundTripper = rt
	}
}
