// Package config defines the intuneforge settings file and helpers to load,
// validate and save it in YAML format.
//
// The settings cover the Graph endpoint, the optional storage proxy, the
// packages directory, HTTP timeouts, the upload block size and the polling
// and retry policies of the deployment orchestrator.
package config
