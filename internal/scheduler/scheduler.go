// Package scheduler triggers scans at fixed hours of the day in a
// configured timezone.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Hours used when the configured schedule contains no valid entry.
var defaultHours = []int{6, 12, 18}

// Scheduler wraps a cron runner with a single recurring scan job.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *slog.Logger
}

// New builds a scheduler that invokes scan at the given hours. The hours
// string is a comma-separated list like "6,12,18"; entries that are not
// integers in [0,23] are discarded, and an empty result falls back to the
// default schedule.
func New(hours, timezone string, scan func(), logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	parsed := ParseScheduleHours(hours, logger)
	spec := cronSpec(parsed)

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, scan); err != nil {
		return nil, fmt.Errorf("registering scan schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, spec: spec, logger: logger}, nil
}

// Start begins firing the schedule. Returns immediately.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "schedule", s.spec)
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight invocation to finish,
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("shutting down scheduler")
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// ParseScheduleHours parses a comma-separated hour list, discarding invalid
// entries. An empty result yields the default 6,12,18.
func ParseScheduleHours(raw string, logger *slog.Logger) []int {
	var hours []int
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		h, err := strconv.Atoi(field)
		if err != nil || h < 0 || h > 23 {
			logger.Warn("ignoring invalid schedule hour", "value", field)
			continue
		}
		hours = append(hours, h)
	}
	if len(hours) == 0 {
		logger.Warn("no valid schedule hours configured, using default", "default", defaultHours)
		return append([]int(nil), defaultHours...)
	}
	return hours
}

// cronSpec renders hours as a standard five-field cron expression firing at
// minute zero.
func cronSpec(hours []int) string {
	fields := make([]string, len(hours))
	for i, h := range hours {
		fields[i] = strconv.Itoa(h)
	}
	return "0 " + strings.Join(fields, ",") + " * * *"
}
