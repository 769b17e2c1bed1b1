// Package clock provides the server clock reported to the caller. The clock
// runs at real speed but is shifted from UTC by an offset fixed when it is
// built: the host's local zone, a configured offset, or a static hour and
// date.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/pkg/types"
)

// DateLayout is the day-first form accepted for a static date.
const DateLayout = "2/1/2006"

// Clock reports server wall time.
type Clock struct {
	offset time.Duration
	now    func() time.Time
}

// New builds a clock from cfg. Invalid offset, hour, or date values are
// logged and ignored.
func New(cfg types.TimeConfig, log zerolog.Logger) *Clock {
	return build(cfg, log, time.Now, time.Local)
}

func build(cfg types.TimeConfig, log zerolog.Logger, now func() time.Time, loc *time.Location) *Clock {
	start := now()
	utc := wall(start.UTC())

	mode, ok := types.TimeMode(cfg.Type)
	if !ok {
		log.Warn().Str("type", cfg.Type).Msg("unknown time type, using Local")
		mode = types.TimeLocal
	}

	var target time.Time
	switch mode {
	case types.TimeCustom:
		target = utc
		d, err := ParseOffset(cfg.Offset)
		if err != nil {
			log.Warn().Err(err).Str("offset", cfg.Offset).Msg("invalid time offset")
		} else {
			target = target.Add(d)
		}
	case types.TimeStatic:
		target = wall(start.In(loc))
		target = applyHour(target, cfg.Hour, log)
		target = applyDate(target, cfg.Date, log)
	default:
		target = wall(start.In(loc))
	}

	c := &Clock{offset: target.Sub(utc), now: now}
	log.Info().Str("type", mode).Dur("offset", c.offset).Msg("server clock ready")
	return c
}

// wall drops the zone, keeping the wall-clock fields.
func wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func applyHour(t time.Time, hour string, log zerolog.Logger) time.Time {
	hour = strings.TrimSpace(hour)
	if hour == "" {
		return t
	}
	h, err := strconv.Atoi(hour)
	if err != nil {
		log.Warn().Str("hour", hour).Msg("invalid time hour, expected int")
		return t
	}
	return t.Add(time.Duration(h-t.Hour()) * time.Hour)
}

func applyDate(t time.Time, date string, log zerolog.Logger) time.Time {
	date = strings.TrimSpace(date)
	if date == "" {
		return t
	}
	d, err := ParseDate(date)
	if err != nil {
		log.Warn().Err(err).Str("date", date).Msg("invalid time date")
		return t
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Now returns the server time. Its fields are the server's wall clock; the
// location is UTC.
func (c *Clock) Now() time.Time {
	return c.now().UTC().Add(c.offset).Truncate(time.Second)
}

// Offset returns the fixed distance from UTC.
func (c *Clock) Offset() time.Duration { return c.offset }

// ParseOffset reads [+|-]h[:mm[:ss]], or a Go duration such as 90m.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	sign := time.Duration(1)
	body := s
	switch body[0] {
	case '-':
		sign, body = -1, body[1:]
	case '+':
		body = body[1:]
	}

	parts := strings.Split(body, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("parse offset %q: too many fields", s)
	}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("parse offset %q: bad field %q", s, p)
		}
		d += time.Duration(n) * units[i]
	}
	return sign * d, nil
}

// ParseDate reads a day-first date. Slashes, dashes, and dots all separate
// fields.
func ParseDate(s string) (time.Time, error) {
	norm := strings.NewReplacer("-", "/", ".", "/").Replace(strings.TrimSpace(s))
	t, err := time.Parse(DateLayout, norm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
