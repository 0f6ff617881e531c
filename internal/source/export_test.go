package source

// WithExecutable overrides how the running executable is located.
func WithExecutable(f func() (string, error)) Options {
	return func(o *options) {
		o.executable = f
	}
}

// WithReadFile overrides how document files are read.
func WithReadFile(f func(string) ([]byte, error)) Options {
	return func(o *options) {
		o.readFile = f
	}
}
