package ircmd

import (
	"time"

	"github.com/robfig/cron/v3"
)

// The relay accepts both five field and seconds-first six field expressions.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CheckCron validates expr with the same grammar NextRun uses.
func CheckCron(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}

// NextRun returns the next activation of expr after from, evaluated in the
// device zone. ok is false when expr does not parse.
func NextRun(expr string, from time.Time) (next time.Time, ok bool) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	next = sched.Next(from.In(DeviceZone))
	return next, !next.IsZero()
}
