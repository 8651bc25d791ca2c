package cron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCronExpression = errors.New("invalid cron expression")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule wraps a parsed five field expression or a descriptor such as
// "@every 1m" or "@hourly".
type Schedule struct {
	expr string
	spec cron.Schedule
}

func Parse(expr string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidCronExpression
	}

	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}

	return &Schedule{
		expr: expr,
		spec: spec,
	}, nil
}

func Validate(expr string) error {
	_, err := Parse(expr)

	return err
}

func (s *Schedule) String() string {
	return s.expr
}

// Next returns the first activation strictly after from, evaluated in the
// given IANA timezone. An unknown timezone falls back to UTC.
func (s *Schedule) Next(from time.Time, timezone string) time.Time {
	if s == nil || s.spec == nil {
		return time.Time{}
	}

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	return s.spec.Next(from.In(loc))
}
