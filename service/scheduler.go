/*
scheduler.go - Periodic background ledger recomputation

PURPOSE:
  Keeps current-period ledger snapshots fresh without a caller asking.
  The settle path never relies on these snapshots - it always recomputes
  under its lock - so a stale background read here is harmless.

SCHEDULE:
  A cron expression (default hourly). Each run recomputes the snapshot
  for every active profile and audits the recomputation.

SEE ALSO:
  - service.go: RecomputeAll
*/
package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRecomputeSpec runs at the top of every hour.
const DefaultRecomputeSpec = "0 * * * *"

// Recomputer schedules periodic snapshot refreshes.
type Recomputer struct {
	svc  *Service
	log  zerolog.Logger
	cron *cron.Cron
	spec string
}

// NewRecomputer builds a recomputer with the given cron spec. An empty
// spec falls back to DefaultRecomputeSpec.
func NewRecomputer(svc *Service, log zerolog.Logger, spec string) *Recomputer {
	if spec == "" {
		spec = DefaultRecomputeSpec
	}
	return &Recomputer{
		svc:  svc,
		log:  log,
		cron: cron.New(),
		spec: spec,
	}
}

// Start registers the job and starts the cron loop.
func (r *Recomputer) Start() error {
	_, err := r.cron.AddFunc(r.spec, r.run)
	if err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info().Str("spec", r.spec).Msg("ledger recompute scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (r *Recomputer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("ledger recompute scheduler stopped")
}

func (r *Recomputer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	started := time.Now()
	count, err := r.svc.RecomputeAll(ctx)
	if err != nil {
		r.log.Error().Err(err).Int("recomputed", count).Msg("periodic recompute failed")
		return
	}
	r.log.Info().
		Int("recomputed", count).
		Dur("elapsed", time.Since(started)).
		Msg("periodic recompute finished")
}
