// Package migrate wires the engine packages into the per-phase runbook:
// build natural-key indexes, read a legacy batch, validate, group/synthesize/
// resolve, write through the transactional writer, persist correlations, and
// print a run summary.
//
// Phases are invoked independently; ordering (categories → attributes →
// materials → products → attribute-values → images → stock → sets) is an
// operational runbook documented in the README, not enforced here. A phase
// that needs an earlier phase's output fails loudly when the correlation
// artifact is missing.
package migrate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"shopmigrate/internal/config"
	"shopmigrate/internal/correlate"
	"shopmigrate/internal/db"
	"shopmigrate/internal/legacy"
	"shopmigrate/internal/lookup"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// Runner holds the per-run wiring shared by all phases: open source and
// target stores, the writer, and the correlation store. One Runner serves one
// phase invocation; batches within a run are strictly sequential.
type Runner struct {
	Cfg    *config.Config
	RunID  string
	Source db.DB
	Target db.DB
	Reader *legacy.Reader
	Writer *writer.Writer
	Corr   *correlate.Store
}

// NewRunner opens both stores and assembles the run wiring. An unreachable
// store fails here, before any phase work starts; errors wrap db.ErrConnection
// so main can pick the exit code.
func NewRunner(ctx context.Context, cfg *config.Config) (*Runner, error) {
	src, err := openStore(ctx, cfg.SourceDriver, cfg.SourceDSN)
	if err != nil {
		return nil, fmt.Errorf("open legacy source: %w", err)
	}
	tgt, err := openStore(ctx, cfg.TargetDriver, cfg.TargetDSN)
	if err != nil {
		_ = src.Close(ctx)
		return nil, fmt.Errorf("open target: %w", err)
	}
	return &Runner{
		Cfg:    cfg,
		RunID:  uuid.NewString(),
		Source: src,
		Target: tgt,
		Reader: legacy.NewReader(src, cfg.SourceDriver),
		Writer: writer.New(tgt),
		Corr:   correlate.NewStore(cfg.ArtifactsDir),
	}, nil
}

// Close releases both store connections.
func (r *Runner) Close(ctx context.Context) {
	_ = r.Source.Close(ctx)
	_ = r.Target.Close(ctx)
}

func openStore(ctx context.Context, driver, dsn string) (db.DB, error) {
	if driver == "postgres" {
		return db.NewPostgres(ctx, dsn)
	}
	return db.NewSQLStore(ctx, driver, dsn)
}

// indexFactory mints fresh target connections for concurrent index builds;
// the Runner's own target connection is not shared across goroutines.
func (r *Runner) indexFactory() lookup.Factory {
	return func(ctx context.Context) (db.DB, error) {
		return openStore(ctx, r.Cfg.TargetDriver, r.Cfg.TargetDSN)
	}
}

// indexQueries returns the build queries for the named indexes, scoped to the
// configured tenant. Queries carry ORDER BY id so duplicate natural keys in
// the target deterministically resolve to the earliest row.
func (r *Runner) indexQueries(names ...string) (map[string]string, error) {
	t := r.Cfg.TenantID
	all := map[string]string{
		"categories":  fmt.Sprintf(`SELECT name, id FROM categories WHERE tenant_id = %d ORDER BY id`, t),
		"collections": fmt.Sprintf(`SELECT name, id FROM collections WHERE tenant_id = %d ORDER BY id`, t),
		"users":       fmt.Sprintf(`SELECT name, id FROM users WHERE tenant_id = %d ORDER BY id`, t),
		"warehouses":  fmt.Sprintf(`SELECT code, id FROM warehouses WHERE tenant_id = %d ORDER BY id`, t),
		"materials":   fmt.Sprintf(`SELECT name, id FROM materials WHERE tenant_id = %d ORDER BY id`, t),
		"attributes":  fmt.Sprintf(`SELECT attr_type, name, id FROM attributes WHERE tenant_id = %d ORDER BY id`, t),
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		q, ok := all[n]
		if !ok {
			return nil, fmt.Errorf("no index query named %q", n)
		}
		out[n] = q
	}
	return out, nil
}

// buildResolver builds the named indexes concurrently and wraps them in a
// Resolver for the phase.
func (r *Runner) buildResolver(ctx context.Context, names ...string) (*resolve.Resolver, error) {
	specs, err := r.indexQueries(names...)
	if err != nil {
		return nil, err
	}
	indexes, err := lookup.BuildAll(ctx, r.indexFactory(), specs)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	return resolve.New(indexes), nil
}

// newSkipLog opens the per-phase skipped-row CSV under the configured dir.
func (r *Runner) newSkipLog(phase string) (*skiplog.Log, error) {
	return skiplog.New(filepath.Join(r.Cfg.SkippedDir, phase+".csv"))
}

// PhaseFunc runs one migration phase to completion.
type PhaseFunc func(ctx context.Context, r *Runner) (*Summary, error)

// phaseBody is the phase-specific middle of a run. It fills the Summary and
// skip log and returns the resolver (nil when the phase resolves nothing) so
// the wrapper can fold lookup stats into the summary.
type phaseBody func(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error)

// runPhase wraps a phase body with the bookkeeping every phase shares:
// summary and skip-log setup, cleanup on error, and the final summary
// publish.
func runPhase(ctx context.Context, r *Runner, name string, body phaseBody) (*Summary, error) {
	start := time.Now()
	s := newSummary(name, r.RunID)
	sl, err := r.newSkipLog(name)
	if err != nil {
		return nil, err
	}
	resolver, err := body(ctx, r, s, sl)
	if err != nil {
		_ = sl.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := s.finish(start, sl, resolver); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// phases lists every phase in runbook order.
var phases = []struct {
	Name string
	Fn   PhaseFunc
}{
	{"categories", RunCategories},
	{"attributes", RunAttributes},
	{"materials", RunMaterials},
	{"products", RunProducts},
	{"attribute-values", RunAttributeValues},
	{"images", RunImages},
	{"stock", RunStock},
	{"sets", RunSets},
}

// PhaseNames returns the runbook-ordered phase names for the CLI.
func PhaseNames() []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = p.Name
	}
	return out
}

// InitSchema opens the target store on its own (no legacy source needed) and
// creates the catalog tables.
func InitSchema(ctx context.Context, cfg *config.Config) error {
	if cfg.TargetDSN == "" {
		return fmt.Errorf("target DSN is required (flag --target-dsn or env TARGET_DSN)")
	}
	tgt, err := openStore(ctx, cfg.TargetDriver, cfg.TargetDSN)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer tgt.Close(ctx)
	return EnsureTargetSchema(ctx, tgt, cfg.TargetDriver)
}

// Run executes one named phase.
func Run(ctx context.Context, r *Runner, name string) (*Summary, error) {
	for _, p := range phases {
		if p.Name == name {
			return p.Fn(ctx, r)
		}
	}
	return nil, fmt.Errorf("unknown phase %q (have %v)", name, PhaseNames())
}
