// Package tariff resolves which product and unit rate are in force for an
// account at a given instant. All functions are pure: they read the supplied
// snapshot data and never return errors; anything malformed resolves to a
// "not ok" result so a bad product can never take down evaluation.
package tariff

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/octobridge/octobridge/pkg/types"
)

// ActiveProduct returns the product currently in force, or false if none is
// valid at now.
//
// Validity filtering compares the raw ValidFrom/ValidTo strings against an
// ISO-8601 rendering of now. The comparison is lexicographic on purpose:
// the upstream API emits uniformly formatted timestamps and downstream
// consumers depend on the resulting tie-break order, so these must not be
// parsed into instants.
func ActiveProduct(products []types.Product, now time.Time) (types.Product, bool) {
	nowStr := now.Format(time.RFC3339)

	valid := make([]types.Product, 0, len(products))
	for _, p := range products {
		// products without a start are never considered
		if p.ValidFrom == "" {
			continue
		}
		if p.ValidFrom <= nowStr && (p.ValidTo == "" || nowStr <= p.ValidTo) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return types.Product{}, false
	}

	// latest ValidFrom wins; ties keep their original relative order
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].ValidFrom > valid[j].ValidFrom
	})
	return valid[0], true
}

// ActiveRate returns the unit rate of the product in EUR per kWh, or false
// if no rate can be resolved.
//
// Time-of-use products are scanned slot by slot, rule by rule, for the first
// window containing now's time of day; a slot whose rate fails to parse is
// skipped rather than aborting the scan. When no slot matches, the product's
// own gross rate is used, which is also the entire resolution for simple
// products.
func ActiveRate(p types.Product, now time.Time) (float64, bool) {
	if p.Type == types.ProductTypeTimeOfUse {
		if slot, ok := ActiveTimeslot(p, now); ok {
			return slot.EURPerKWH, true
		}
	}
	return parseCents(p.GrossRate)
}

// Slot describes the time-of-use slot active at a particular instant.
type Slot struct {
	Name      string
	EURPerKWH float64
	From      string
	To        string
}

// ActiveTimeslot returns the first timeslot of a time-of-use product with an
// activation rule containing now's time of day and a parseable rate.
func ActiveTimeslot(p types.Product, now time.Time) (Slot, bool) {
	if p.Type != types.ProductTypeTimeOfUse {
		return Slot{}, false
	}
	cur := clockOf(now)
	for _, ts := range p.Timeslots {
		for _, rule := range ts.ActivationRules {
			from, err := parseClock(rule.FromTime)
			if err != nil {
				continue
			}
			to, err := parseClock(rule.ToTime)
			if err != nil {
				continue
			}
			if !windowContains(cur, from, to) {
				continue
			}
			rate, ok := parseCents(ts.Rate)
			if !ok {
				// keep scanning, a later slot might still resolve
				continue
			}
			return Slot{
				Name:      ts.Name,
				EURPerKWH: rate,
				From:      rule.FromTime,
				To:        rule.ToTime,
			}, true
		}
	}
	return Slot{}, false
}

// parseCents converts a rate string in cents to EUR. The division is exact,
// no rounding is applied.
func parseCents(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f / 100.0, true
}

// clock is a time of day, compared in whole seconds.
type clock struct {
	hour, minute, second int
}

func clockOf(t time.Time) clock {
	return clock{hour: t.Hour(), minute: t.Minute(), second: t.Second()}
}

func (c clock) seconds() int {
	return c.hour*3600 + c.minute*60 + c.second
}

func (c clock) isMidnight() bool {
	return c.hour == 0 && c.minute == 0 && c.second == 0
}

// parseClock parses an HH:MM:SS string.
func parseClock(s string) (clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return clock{}, strconv.ErrSyntax
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return clock{}, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return clock{}, err
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return clock{}, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return clock{}, strconv.ErrRange
	}
	return clock{hour: h, minute: m, second: sec}, nil
}

// windowContains reports whether now falls inside the daily window
// [from, to). A to of exactly midnight is ambiguous between "end of day" and
// "start of day", so it gets its own branch instead of falling into the
// generic crossing-midnight case: the window then runs from from through the
// end of the day (or covers the whole day when from is midnight too).
func windowContains(now, from, to clock) bool {
	if to.isMidnight() {
		if from.isMidnight() {
			return true
		}
		return now.seconds() >= from.seconds() || now.seconds() < to.seconds()
	}
	if from.seconds() <= to.seconds() {
		return from.seconds() <= now.seconds() && now.seconds() < to.seconds()
	}
	// window crosses midnight
	return now.seconds() >= from.seconds() || now.seconds() < to.seconds()
}
