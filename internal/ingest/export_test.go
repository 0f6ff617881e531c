package ingest

// WithRunID overrides how run identifiers are generated.
func WithRunID(f func() string) Options {
	return func(o *options) {
		o.newRunID = f
	}
}
