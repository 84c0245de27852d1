// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services never hold a logger of their own: they derive a named, enriched
// logger from the context (WithName/WithKV) and log through the package-level
// helpers (InfoKV, WarnKV, ...). Output goes to stderr so that commands can
// keep stdout for their results.
package logger
