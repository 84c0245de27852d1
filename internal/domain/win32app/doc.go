// Package win32app holds the package configuration record of a Win32 line-of-business app:
// install settings, detection rules and assignments.
//
// Detection rules and assignment targets are closed sets of variants decoded
// from a YAML discriminator; an unknown kind fails while decoding, never later.
package win32app
