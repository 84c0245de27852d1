// Package integration holds end-to-end tests that drive the intuneforge
// commands against an in-process fake of Microsoft Graph and blob storage.
package integration
