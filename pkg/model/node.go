package model

import "strings"

// TailnetIPv4Prefix is the textual prefix of addresses Headscale hands out from 100.64.0.0/10.
const TailnetIPv4Prefix = "100.64."

// Node is a Headscale machine as returned by GET /api/v1/node.
type Node struct {
	ID          string   `json:"id"`
	MachineKey  string   `json:"machineKey"`
	NodeKey     string   `json:"nodeKey"`
	DiscoKey    string   `json:"discoKey"`
	IPAddresses []string `json:"ipAddresses"`
	Name        string   `json:"name"`
	User        User     `json:"user"`
	LastSeen    string   `json:"lastSeen"`
	Expiry      *string  `json:"expiry,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	Online      bool     `json:"online"`
}

// IPv4 returns the first tailnet IPv4 address of the node.
func (n Node) IPv4() (string, bool) {
	for _, ip := range n.IPAddresses {
		if strings.HasPrefix(ip, TailnetIPv4Prefix) {
			return ip, true
		}
	}
	return "", false
}

// IPv6 returns the first IPv6 address of the node.
func (n Node) IPv6() (string, bool) {
	for _, ip := range n.IPAddresses {
		if strings.Contains(ip, ":") {
			return ip, true
		}
	}
	return "", false
}

// HasUserEmail reports whether the node belongs to an OIDC-authenticated user.
func (n Node) HasUserEmail() bool {
	return n.User.Email != nil && *n.User.Email != ""
}

// Email returns the bound user's email or "" when absent.
func (n Node) Email() string {
	if n.User.Email == nil {
		return ""
	}
	return *n.User.Email
}
