// Package version exposes build metadata for intuneforge.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for the CLI, UserAgent for the
// HTTP clients talking to Graph and to blob storage.
package version
