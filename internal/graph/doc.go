// Package graph is a minimal Microsoft Graph client for the Intune
// win32LobApp endpoints and directory groups.
//
// Authentication is the caller's concern: the *http.Client handed to New is
// expected to attach bearer tokens, see NewHTTPClient.
package graph
