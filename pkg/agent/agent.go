// Package agent runs the fetch, render and persist cycle that keeps the BIRD user
// policy in sync with Headscale and peerlab-gateway.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"peerlab-bird/pkg/auth"
	"peerlab-bird/pkg/bird"
	"peerlab-bird/pkg/consul"
	"peerlab-bird/pkg/journal"
	"peerlab-bird/pkg/logging"
	"peerlab-bird/pkg/metrics"
	"peerlab-bird/pkg/model"
	"peerlab-bird/pkg/persist"
)

// CredentialWarnWindow is how close to expiry a JWT credential starts producing warnings.
const CredentialWarnWindow = 72 * time.Hour

// NodeSource lists tailnet nodes.
type NodeSource interface {
	FetchNodes(ctx context.Context) ([]model.Node, error)
}

// MappingSource lists user mappings.
type MappingSource interface {
	FetchMappings(ctx context.Context) ([]model.UserMapping, error)
}

// Reloader makes the router pick up a changed file.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Recorder stores the outcome of a cycle.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Publisher mirrors a changed config somewhere else.
type Publisher interface {
	Publish(ctx context.Context, s consul.Snapshot) error
}

// Syncer wires the sources, renderer and writer together. Optional collaborators may be nil.
type Syncer struct {
	Nodes    NodeSource
	Mappings MappingSource
	Writer   *persist.Writer
	Output   string
	Mode     bird.Mode

	// Credentials maps a display name to a bearer token checked for JWT expiry before fetching.
	Credentials map[string]string

	Reloader    Reloader
	Journal     Recorder
	Publisher   Publisher
	Metrics     *metrics.Recorder
	MetricsFile string

	Logger *slog.Logger
	Now    func() time.Time
}

// Result is the outcome of one successful cycle.
type Result struct {
	RunID   string
	Changed bool
	Digest  string
	Stats   bird.Stats
}

func (s *Syncer) log() *slog.Logger {
	if s.Logger == nil {
		return logging.Discard()
	}
	return s.Logger
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Sync runs one cycle. Nothing on disk is touched unless both fetches succeeded.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := s.log().With("run", res.RunID)
	started := s.now()

	err := s.sync(ctx, log, &res)
	s.observe(log, started, res, err == nil)
	return res, err
}

func (s *Syncer) sync(ctx context.Context, log *slog.Logger, res *Result) error {
	for name, tok := range s.Credentials {
		soon, err := auth.CheckExpiry(name, tok, s.now(), CredentialWarnWindow)
		if err != nil {
			return err
		}
		if soon {
			log.Warn("credential expires soon", "credential", name, "expires", auth.Inspect(tok).ExpiresAt)
		}
	}

	nodes, err := s.Nodes.FetchNodes(ctx)
	if err != nil {
		return fmt.Errorf("fetch nodes: %w", err)
	}
	log.Info("fetched nodes from Headscale", "count", len(nodes))

	mappings, err := s.Mappings.FetchMappings(ctx)
	if err != nil {
		return fmt.Errorf("fetch mappings: %w", err)
	}
	log.Info("fetched user mappings from peerlab-gateway", "count", len(mappings))

	cfg := bird.Render(nodes, mappings, bird.Options{Mode: s.Mode, Now: s.now, Logger: log})
	res.Stats = cfg.Stats

	wres, err := s.Writer.Write(s.Output, []byte(cfg.Text))
	if err != nil {
		return err
	}
	res.Changed = wres.Changed
	res.Digest = wres.Digest

	entry := journal.Entry{
		RunID:   res.RunID,
		Time:    s.now(),
		Output:  s.Output,
		Digest:  wres.Digest,
		Changed: wres.Changed,
		Clauses: cfg.Stats.Clauses,
		Skipped: cfg.Stats.MissingAddress + cfg.Stats.MissingMapping,
	}

	if !wres.Changed {
		log.Info("configuration unchanged", "path", s.Output)
		s.record(ctx, log, entry)
		if s.Reloader != nil && reloadPending(s.Output) {
			log.Warn("previous reload did not complete; retrying", "path", s.Output)
			return s.reload(ctx, log)
		}
		return nil
	}

	added, removed := lineChanges(bird.StripHeader(string(wres.Previous)), bird.StripHeader(cfg.Text))
	entry.Detail = fmt.Sprintf("+%d -%d lines", added, removed)
	log.Info("configuration file updated", "path", s.Output, "digest", wres.Digest, "added", added, "removed", removed)
	s.record(ctx, log, entry)

	if s.Reloader != nil {
		if err := markReloadPending(s.Output); err != nil {
			return err
		}
		if err := s.reload(ctx, log); err != nil {
			return err
		}
	}
	if s.Publisher != nil {
		snap := consul.Snapshot{
			RunID:       res.RunID,
			Digest:      wres.Digest,
			Clauses:     cfg.Stats.Clauses,
			GeneratedAt: entry.Time,
			Config:      cfg.Text,
		}
		if err := s.Publisher.Publish(ctx, snap); err != nil {
			log.Warn("publish config to consul failed", "err", err)
		}
	}
	return nil
}

// reload runs the Reloader and clears the pending marker once BIRD accepted the file.
func (s *Syncer) reload(ctx context.Context, log *slog.Logger) error {
	if err := s.Reloader.Reload(ctx); err != nil {
		return fmt.Errorf("reload bird: %w", err)
	}
	if err := clearReloadPending(s.Output); err != nil {
		return err
	}
	log.Info("bird reloaded")
	return nil
}

func (s *Syncer) record(ctx context.Context, log *slog.Logger, e journal.Entry) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.Record(ctx, e); err != nil {
		log.Warn("journal record failed", "err", err)
	}
}

func (s *Syncer) observe(log *slog.Logger, started time.Time, res Result, ok bool) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.Observe(metrics.Run{
		Time:             started,
		Success:          ok,
		Changed:          res.Changed,
		Candidates:       res.Stats.Candidates,
		Clauses:          res.Stats.Clauses,
		MissingAddress:   res.Stats.MissingAddress,
		MissingMapping:   res.Stats.MissingMapping,
		EmptyPrefixUsers: res.Stats.EmptyPrefixUsers,
	})
	if s.MetricsFile == "" {
		return
	}
	if err := s.Metrics.WriteTextfile(s.MetricsFile); err != nil {
		log.Warn("write metrics textfile failed", "path", s.MetricsFile, "err", err)
	}
}

// Loop runs Sync every interval until ctx is done. The first cycle runs immediately.
// Cycle errors are logged and the loop keeps going.
func (s *Syncer) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sync(ctx); err != nil {
			s.log().Error("sync failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
