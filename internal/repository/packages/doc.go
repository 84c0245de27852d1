// Package packages persists package configurations.
//
// Repository is the injected key-value store used by the commands; the
// FileRepository implementation keeps one YAML document per package in a
// directory, keyed by package name.
package packages
