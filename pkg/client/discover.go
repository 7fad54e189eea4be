package client

import (
	"context"
	"fmt"
)

// WellKnownPath is the resource directory every discoverable peer serves.
const WellKnownPath = "/.well-known/core"

// Discover fetches the peer's resource directory and parses it. The
// optional query filters server-side, e.g. "rt=temperature".
func (c *Client) Discover(ctx context.Context, query string) ([]ResourceLink, error) {
	path := WellKnownPath
	if query != "" {
		path += "?" + query
	}

	resp, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	links, err := ParseLinkFormat(string(resp.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse resource directory: %w", err)
	}
	return links, nil
}
