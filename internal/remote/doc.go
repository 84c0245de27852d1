// Package remote holds the HTTP error type shared by the Graph and storage
// clients and small helpers for reading their responses.
package remote
