package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Five fields (minute, hour, day of month, month, weekday), matching what
// asynq's scheduler accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a parsed cron expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

func ParseSchedule(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &Schedule{expr: expr, sched: sched}, nil
}

// String returns the expression as asynq should be given it.
func (s *Schedule) String() string { return s.expr }

// Next returns the first run strictly after from, in UTC.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.sched.Next(from.UTC())
}

// Interval is the gap between the next two runs after from.
func (s *Schedule) Interval(from time.Time) time.Duration {
	first := s.Next(from)
	return s.Next(first).Sub(first)
}
