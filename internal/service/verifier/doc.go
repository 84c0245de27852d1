// Package verifier opens a .intunewin container and checks its MAC and
// content digest, reporting what it holds.
package verifier
