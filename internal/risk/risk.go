// Package risk scores storage objects by how exposed their personal data is.
package risk

import (
	"math"
	"time"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Level buckets a score.
type Level string

// Risk levels.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Factor weights, summing to one.
const (
	weightSensitivity   = 0.4
	weightAccessibility = 0.3
	weightUsage         = 0.2
	weightAge           = 0.1
)

// Assessment is the risk outcome for one object.
type Assessment struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
	// Orphan marks objects no lineage edge touches
	Orphan bool `json:"orphan"`
}

// Input carries what the scorer needs to know about an object.
type Input struct {
	Fields     []core.Field
	Referenced bool
	ModifiedAt *time.Time
	// AsOf is the reference date for age; zero disables the age factor
	AsOf time.Time
}

// Score computes a 0..100 risk score. Fields must already be classified;
// unclassified fields count as non-sensitive.
func Score(in Input) Assessment {
	total := weightSensitivity*sensitivityScore(in.Fields) +
		weightAccessibility*accessibilityScore(in.Fields) +
		weightUsage*usageScore(in.Referenced) +
		weightAge*ageScore(in.ModifiedAt, in.AsOf)

	score := int(math.Round(total))
	return Assessment{
		Score:  score,
		Level:  levelFor(score),
		Orphan: !in.Referenced,
	}
}

func sensitivityScore(fields []core.Field) float64 {
	points := 0.0
	for _, f := range fields {
		if f.Sensitivity == nil {
			continue
		}
		switch f.Sensitivity.Category {
		case core.SensitivityEmail:
			points += 50
		case core.SensitivityPhone:
			points += 40
		case core.SensitivityIdentifier:
			points += 90
		}
	}
	return math.Min(points, 100)
}

// accessibilityScore rates contactable data higher: email and phone fields
// are what sends and exports touch.
func accessibilityScore(fields []core.Field) float64 {
	for _, f := range fields {
		if f.Sensitivity == nil {
			continue
		}
		if c := f.Sensitivity.Category; c == core.SensitivityEmail || c == core.SensitivityPhone {
			return 70
		}
	}
	return 40
}

func usageScore(referenced bool) float64 {
	if referenced {
		return 90
	}
	return 10
}

func ageScore(modifiedAt *time.Time, asOf time.Time) float64 {
	if modifiedAt == nil || asOf.IsZero() {
		return 50
	}
	days := asOf.Sub(*modifiedAt).Hours() / 24
	switch {
	case days >= 365:
		return 100
	case days >= 180:
		return 75
	case days >= 90:
		return 60
	default:
		return 30
	}
}

func levelFor(score int) Level {
	switch {
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}
