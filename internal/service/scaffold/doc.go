// Package scaffold creates and lists package configurations.
package scaffold
