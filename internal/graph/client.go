package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/oshokin/intuneforge/internal/remote"
	"github.com/oshokin/intuneforge/internal/version"
)

const (
	// DefaultRootURL is the public Microsoft Graph endpoint.
	DefaultRootURL = "https://graph.microsoft.com"

	mobileAppsPath = "/beta/deviceAppManagement/mobileApps"
	groupsPath     = "/v1.0/groups"
)

// Client talks to Microsoft Graph.
type Client struct {
	httpClient *http.Client
	rootURL    string
}

// New returns a client for the Graph deployment rooted at rootURL.
func New(httpClient *http.Client, rootURL string) *Client {
	if rootURL == "" {
		rootURL = DefaultRootURL
	}

	return &Client{
		httpClient: httpClient,
		rootURL:    strings.TrimRight(rootURL, "/"),
	}
}

// StaticToken wraps an access token obtained elsewhere.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// NewHTTPClient returns an HTTP client that authenticates every request
// with a token from source.
func NewHTTPClient(source oauth2.TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: source,
			Base:   http.DefaultTransport,
		},
	}
}

func (c *Client) appURL(appID string) string {
	return c.rootURL + mobileAppsPath + "/" + appID
}

func (c *Client) contentVersionsURL(appID string) string {
	return c.appURL(appID) + "/microsoft.graph.win32LobApp/contentVersions"
}

func (c *Client) filesURL(appID, contentVersionID string) string {
	return c.contentVersionsURL(appID) + "/" + contentVersionID + "/files"
}

func (c *Client) fileURL(appID, contentVersionID, fileID string) string {
	return c.filesURL(appID, contentVersionID) + "/" + fileID
}

// do sends a JSON request and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, op, method, url string, in, out any) error {
	res, err := c.send(ctx, op, method, url, in)
	if err != nil {
		return err
	}

	defer remote.Drain(res)

	if out == nil {
		return nil
	}

	return remote.DecodeJSON(op, res, out)
}

// send issues the request and checks the status. The caller owns the body.
func (c *Client) send(ctx context.Context, op, method, url string, in any) (*http.Response, error) {
	var body io.Reader

	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	version.SetUserAgent(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = remote.CheckResponse(op, res); err != nil {
		_ = res.Body.Close()

		return nil, err
	}

	return res, nil
}
