package headscale

import (
	"context"
	"net/http"

	"peerlab-bird/pkg/model"
	"peerlab-bird/pkg/upstream"
)

// DefaultURL is the node listing endpoint of the nxthdr Headscale instance.
const DefaultURL = "https://headscale.nxthdr.dev/api/v1/node"

type nodesResponse struct {
	Nodes []model.Node `json:"nodes"`
}

// Client lists nodes from the Headscale API.
type Client struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a client for url authenticated with apiKey.
func New(url, apiKey string, httpClient *http.Client) *Client {
	return &Client{URL: url, APIKey: apiKey, HTTPClient: httpClient}
}

// FetchNodes returns the nodes in the order the API lists them.
func (c *Client) FetchNodes(ctx context.Context) ([]model.Node, error) {
	var resp nodesResponse
	if err := upstream.GetJSON(ctx, c.HTTPClient, "Headscale", c.URL, c.APIKey, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}
