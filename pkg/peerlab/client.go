package peerlab

import (
	"context"
	"net/http"

	"peerlab-bird/pkg/model"
	"peerlab-bird/pkg/upstream"
)

// DefaultURL is the peerlab-gateway mappings endpoint.
const DefaultURL = "https://peerlab.nxthdr.dev/service/mappings"

type mappingsResponse struct {
	Mappings []model.UserMapping `json:"mappings"`
}

// Client lists user ASN/prefix mappings from peerlab-gateway.
type Client struct {
	URL        string
	AgentKey   string
	HTTPClient *http.Client
}

// New returns a client for url authenticated with the agent key.
func New(url, agentKey string, httpClient *http.Client) *Client {
	return &Client{URL: url, AgentKey: agentKey, HTTPClient: httpClient}
}

// FetchMappings returns every mapping, including ones without an email.
func (c *Client) FetchMappings(ctx context.Context) ([]model.UserMapping, error) {
	var resp mappingsResponse
	if err := upstream.GetJSON(ctx, c.HTTPClient, "peerlab-gateway", c.URL, c.AgentKey, &resp); err != nil {
		return nil, err
	}
	return resp.Mappings, nil
}
