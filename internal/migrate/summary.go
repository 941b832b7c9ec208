package migrate

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"shopmigrate/internal/metrics"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// maxFailureLines caps how many per-record failures the summary prints; the
// full set is still available to callers on the struct.
const maxFailureLines = 10

// Summary aggregates one phase run for logging and metrics. Succeeded counts
// inserts plus in-place updates; Skipped are idempotent re-run no-ops;
// Invalid rows never reached the writer (see the skip-log CSV).
type Summary struct {
	Phase    string
	RunID    string
	Duration time.Duration

	Read           int
	Invalid        int
	InvalidReasons map[string]int

	Succeeded int
	Updated   int
	Skipped   int
	Failed    int
	Failures  []writer.Failure

	// Lookups maps index name to [resolved, unresolved] counts.
	Lookups map[string][2]int
}

func newSummary(phase, runID string) *Summary {
	return &Summary{Phase: phase, RunID: runID, InvalidReasons: map[string]int{}}
}

// addResult folds one writer batch into the summary.
func (s *Summary) addResult(res *writer.Result) {
	s.Succeeded += res.Succeeded
	s.Updated += res.Updated
	s.Skipped += res.Skipped
	s.Failed += res.Failed
	s.Failures = append(s.Failures, res.Failures...)
}

// finish stamps totals from the skip log and resolver, closes the log,
// publishes metrics, and prints the summary. Every phase calls it exactly
// once on the success path.
func (s *Summary) finish(start time.Time, sl *skiplog.Log, resolver *resolve.Resolver) error {
	s.Invalid = sl.Count()
	s.InvalidReasons = sl.Reasons()
	if err := sl.Close(); err != nil {
		return err
	}
	if resolver != nil {
		s.Lookups = resolver.Stats()
	}
	s.Duration = time.Since(start)

	metrics.RecordPhase(s.Phase, s.Duration, s.Succeeded, s.Failed, s.Skipped, s.Invalid)
	for name, c := range s.Lookups {
		metrics.RecordLookup(s.Phase, name, c[0], c[1])
	}
	s.Log()
	return nil
}

// Log prints the run summary in the fixed one-line-per-fact format operators
// grep for.
func (s *Summary) Log() {
	log.Printf("%s: run=%s read=%d succeeded=%d (updated=%d) skipped=%d failed=%d invalid=%d duration=%s",
		s.Phase, s.RunID, s.Read, s.Succeeded, s.Updated, s.Skipped, s.Failed, s.Invalid, s.Duration.Round(time.Millisecond))

	if len(s.InvalidReasons) > 0 {
		reasons := make([]string, 0, len(s.InvalidReasons))
		for r := range s.InvalidReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, r := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", r, s.InvalidReasons[r]))
		}
		log.Printf("%s: invalid rows by reason: %s", s.Phase, strings.Join(parts, ", "))
	}

	names := make([]string, 0, len(s.Lookups))
	for n := range s.Lookups {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := s.Lookups[n]
		log.Printf("%s: index %s: resolved=%d unresolved=%d", s.Phase, n, c[0], c[1])
	}

	for i, f := range s.Failures {
		if i == maxFailureLines {
			log.Printf("%s: ... and %d more failures", s.Phase, len(s.Failures)-maxFailureLines)
			break
		}
		log.Printf("%s: failed %s %q (legacy id %s): %s", s.Phase, f.EntityType, f.NaturalKey, f.LegacyID, f.Err)
	}
}
