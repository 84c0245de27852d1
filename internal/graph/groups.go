package graph

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const groupsPageSize = "50"

// Group is a directory group usable as an assignment target.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type groupsResponse struct {
	Value []Group `json:"value"`
}

// ListGroups returns up to one page of groups whose display name starts
// with prefix. An empty prefix lists groups unfiltered.
func (c *Client) ListGroups(ctx context.Context, prefix string) ([]Group, error) {
	query := url.Values{}
	query.Set("$select", "id,displayName")
	query.Set("$top", groupsPageSize)

	if prefix != "" {
		query.Set("$filter", "startswith(displayName,'"+strings.ReplaceAll(prefix, "'", "''")+"')")
	}

	var page groupsResponse

	if err := c.do(ctx, OpListGroups, http.MethodGet, c.rootURL+groupsPath+"?"+query.Encode(), nil, &page); err != nil {
		return nil, err
	}

	return page.Value, nil
}
