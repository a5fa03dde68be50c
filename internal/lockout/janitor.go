// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"clinigate/internal/clock"
)

// DefaultPurgeSchedule runs the janitor hourly.
const DefaultPurgeSchedule = "@every 1h"

// scheduleParser accepts standard five-field specs with optional seconds
// and descriptors such as @every.
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Janitor periodically purges failed attempts older than the retention
// window from the ledger.
type Janitor struct {
	ledger    Ledger
	retention time.Duration
	clock     clock.Clock
	cron      *cron.Cron
}

// NewJanitor schedules the purge job. The job does not run until Start.
func NewJanitor(ledger Ledger, retention time.Duration, schedule string, clk clock.Clock) (*Janitor, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}

	j := &Janitor{
		ledger:    ledger,
		retention: retention,
		clock:     clk,
		cron:      cron.New(cron.WithParser(scheduleParser)),
	}
	j.cron.Schedule(sched, cron.FuncJob(func() { j.RunOnce(context.Background()) }))
	return j, nil
}

// RunOnce purges expired failures immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	before := j.clock.Now().Add(-j.retention)
	n, err := j.ledger.PurgeAllFailures(ctx, before)
	if err != nil {
		slog.Warn("login ledger purge failed", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("login ledger purged", "removed", n, "before", before)
	}
	return n, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
