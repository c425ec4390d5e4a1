// Package scheduler triggers jobs at fixed times of day on a cron clock.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type job struct {
	guard      *Guard
	specs      []string
	runOnStart bool
}

// Scheduler owns the cron clock and the guarded jobs. Jobs run one at a time:
// a job due while another is running waits for it.
type Scheduler struct {
	loc    *time.Location
	jobs   []job
	serial sync.Mutex
	logger *zap.Logger
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{loc: loc, logger: logger}
}

// Add registers fn under the given cron specs. With runOnStart the job also runs
// once, synchronously, when Run is called.
func (s *Scheduler) Add(name string, specs []string, runOnStart bool, fn JobFunc) *Guard {
	g := NewGuard(name, fn, s.logger)
	g.serial = &s.serial
	s.jobs = append(s.jobs, job{guard: g, specs: specs, runOnStart: runOnStart})
	return g
}

// Run executes run-on-start jobs, starts the clock and blocks until ctx is done.
// Running jobs are awaited before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))

	for _, j := range s.jobs {
		for _, spec := range j.specs {
			if _, err := c.AddFunc(spec, func() { j.guard.Trigger(ctx) }); err != nil {
				return errors.Wrapf(err, "schedule %s at %q", j.guard.name, spec)
			}
		}
		s.logger.Info("job scheduled", zap.String("job", j.guard.name), zap.Strings("specs", j.specs))
	}

	for _, j := range s.jobs {
		if j.runOnStart {
			j.guard.Trigger(ctx)
		}
	}

	c.Start()
	s.logger.Info("scheduler started", zap.String("location", s.loc.String()))

	<-ctx.Done()

	s.logger.Info("scheduler stopping, waiting for running jobs")
	<-c.Stop().Done()
	return nil
}

// DailyAt converts "HH:MM" times of day to cron specs.
func DailyAt(times []string) ([]string, error) {
	specs := make([]string, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", strings.TrimSpace(t))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid time of day %q", t)
		}
		specs = append(specs, fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()))
	}
	return specs, nil
}

// HourlyAt returns a spec firing at the given minutes of every hour.
func HourlyAt(minutes []int) (string, error) {
	if len(minutes) == 0 {
		return "", errors.New("no minutes given")
	}
	sorted := append([]int(nil), minutes...)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, m := range sorted {
		if m < 0 || m > 59 {
			return "", fmt.Errorf("invalid minute %d", m)
		}
		parts = append(parts, strconv.Itoa(m))
	}
	return strings.Join(parts, ",") + " * * * *", nil
}
