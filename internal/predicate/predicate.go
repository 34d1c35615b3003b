// Package predicate implements the saved-search filter language: a conjunction
// of typed conditions (equality, inclusive numeric range, set membership,
// substring match, date range) evaluated by a small interpreter. Parsing is
// where malformed predicates are rejected, so the scanner never sees one.
package predicate

import (
	"strings"
	"time"

	"catalyst-alerts/internal/models"
)

// Condition is one conjunct of a predicate.
type Condition interface {
	// Matches evaluates the condition against a catalog item.
	Matches(item *models.Catalyst) bool
}

// Predicate is a conjunction of conditions. An empty predicate matches the
// whole catalog; this is valid, callers are expected to warn on it.
type Predicate struct {
	Conditions []Condition
}

// IsEmpty reports whether the predicate has zero constraints.
func (p *Predicate) IsEmpty() bool {
	return len(p.Conditions) == 0
}

// Matches reports whether every condition holds for the item.
func (p *Predicate) Matches(item *models.Catalyst) bool {
	for _, c := range p.Conditions {
		if !c.Matches(item) {
			return false
		}
	}
	return true
}

// PhaseEquals matches items in exactly one trial phase.
type PhaseEquals struct {
	Phase string
}

func (c PhaseEquals) Matches(item *models.Catalyst) bool {
	return item.Phase == c.Phase
}

// PhaseIn matches items whose phase is in a set.
type PhaseIn struct {
	Phases []string
}

func (c PhaseIn) Matches(item *models.Catalyst) bool {
	for _, p := range c.Phases {
		if item.Phase == p {
			return true
		}
	}
	return false
}

// MarketCapRange matches items whose market cap lies in [Min, Max], bounds
// inclusive, either bound optional. Items with no market cap never match a
// bounded condition.
type MarketCapRange struct {
	Min *float64
	Max *float64
}

func (c MarketCapRange) Matches(item *models.Catalyst) bool {
	if item.MarketCap == nil {
		return false
	}
	if c.Min != nil && *item.MarketCap < *c.Min {
		return false
	}
	if c.Max != nil && *item.MarketCap > *c.Max {
		return false
	}
	return true
}

// MinEnrollment matches items with at least N enrolled participants.
type MinEnrollment struct {
	Min int
}

func (c MinEnrollment) Matches(item *models.Catalyst) bool {
	return item.Enrollment != nil && *item.Enrollment >= c.Min
}

// IndicationContains matches items whose indication contains the substring,
// case-insensitively.
type IndicationContains struct {
	Substring string
}

func (c IndicationContains) Matches(item *models.Catalyst) bool {
	return strings.Contains(strings.ToLower(item.Indication), strings.ToLower(c.Substring))
}

// CompletionDateRange matches items whose completion date lies in [Start, End],
// bounds inclusive, either bound optional.
type CompletionDateRange struct {
	Start *time.Time
	End   *time.Time
}

func (c CompletionDateRange) Matches(item *models.Catalyst) bool {
	if item.CompletionDate == nil {
		return false
	}
	if c.Start != nil && item.CompletionDate.Before(*c.Start) {
		return false
	}
	if c.End != nil && item.CompletionDate.After(*c.End) {
		return false
	}
	return true
}
