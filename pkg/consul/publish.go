package consul

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

// DefaultPrefix is the KV folder the generated config is mirrored to.
const DefaultPrefix = "peerlab/bird/"

// Snapshot is what gets mirrored after the output file changed.
type Snapshot struct {
	RunID       string    `json:"runId"`
	Digest      string    `json:"digest"`
	Clauses     int       `json:"clauses"`
	GeneratedAt time.Time `json:"generatedAt"`
	Config      string    `json:"-"`
}

// Publisher writes snapshots to Consul KV so other routers can pick up the same policy.
type Publisher struct {
	cli    *consulapi.Client
	prefix string
}

// NewPublisher connects to addr ("" uses CONSUL_HTTP_ADDR or 127.0.0.1:8500).
func NewPublisher(addr, token, prefix string) (*Publisher, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	if token != "" {
		cfg.Token = token
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Publisher{cli: cli, prefix: prefix}, nil
}

// Publish stores config, digest and meta keys in a single transaction.
func (p *Publisher) Publish(ctx context.Context, s Snapshot) error {
	meta, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ops := consulapi.TxnOps{
		kvSet(p.prefix+"config", []byte(s.Config)),
		kvSet(p.prefix+"digest", []byte(s.Digest)),
		kvSet(p.prefix+"meta", meta),
	}
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	ok, resp, _, err := p.cli.Txn().Txn(ops, q)
	if err != nil {
		return fmt.Errorf("consul txn: %w", err)
	}
	if !ok {
		var msgs []string
		if resp != nil {
			for _, e := range resp.Errors {
				msgs = append(msgs, e.What)
			}
		}
		return fmt.Errorf("consul txn rolled back: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func kvSet(key string, value []byte) *consulapi.TxnOp {
	return &consulapi.TxnOp{KV: &consulapi.KVTxnOp{Verb: consulapi.KVSet, Key: key, Value: value}}
}
