package version

import (
	"fmt"
	"net/http"
)

// ProductName identifies the tool in user agents and logs.
const ProductName = "intuneforge"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// UserAgent returns the User-Agent value sent with every outgoing request.
func UserAgent() string {
	return ProductName + "/" + Version
}

// SetUserAgent stamps the request with UserAgent.
func SetUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
