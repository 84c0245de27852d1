// Package groups looks up directory groups to use as assignment targets.
package groups
