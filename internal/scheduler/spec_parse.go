package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5 fields, 6 fields (leading seconds) and descriptors
// such as @hourly or @every 90m.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger is a parsed schedule.
type Trigger struct {
	Spec string

	sched cron.Schedule
}

// Next returns the first activation strictly after t, in t's location.
func (tr Trigger) Next(t time.Time) time.Time { return tr.sched.Next(t) }

// ParseTrigger parses a cron expression ("15 * * * *", "0 15 * * * *") or a
// descriptor ("@hourly", "@every 45m"). An optional "cron:" prefix is ignored.
func ParseTrigger(raw string) (Trigger, error) {
	s := strings.TrimSpace(raw)
	expr := s
	if strings.HasPrefix(strings.ToLower(s), "cron:") {
		expr = strings.TrimSpace(s[len("cron:"):])
	}
	if expr == "" {
		return Trigger{}, fmt.Errorf("schedule required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid schedule %q (want a cron expression like '15 * * * *'): %w", expr, err)
	}
	return Trigger{Spec: s, sched: sched}, nil
}

// HourlyAt returns the cron spec firing once per hour at minute.
func HourlyAt(minute int) string {
	return fmt.Sprintf("%d * * * *", minute)
}
