package internal

import (
	"io"

	"github.com/gallowaylab/plasmiddb/internal/report"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	stdout  io.Writer

	forceRebuild bool
	watch        bool

	report       report.Options
	fromSnapshot bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithStdout sets where reports are printed.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithForceRebuild makes Build clear the rendered pages and rewrite all of them.
func WithForceRebuild(force bool) Option {
	return func(a *application) {
		a.forceRebuild = force
	}
}

// WithWatch keeps Build running and rebuilds whenever the source dump changes.
func WithWatch(watch bool) Option {
	return func(a *application) {
		a.watch = watch
	}
}

// WithReport configures the UserLint tables.
func WithReport(opts report.Options) Option {
	return func(a *application) {
		a.report = opts
	}
}

// WithFromSnapshot makes UserLint re-lint the last stored build instead of
// fetching from the source.
func WithFromSnapshot(v bool) Option {
	return func(a *application) {
		a.fromSnapshot = v
	}
}
