// Package evidence turns the evidence trail of a lineage edge into a confidence value.
package evidence

import (
	"math"
	"strings"
)

// Tier weights, strongest first.
const (
	WeightDirect       = 0.60
	WeightFlow         = 0.20
	WeightContent      = 0.08
	WeightNaming       = 0.04
	WeightUnclassified = 0.02
)

type tier struct {
	weight  float64
	needles []string
}

// tiers are checked in order; an evidence string counts once, at its strongest tier.
var tiers = []tier{
	{weight: WeightDirect, needles: []string{"query:", "sql", "direct reference"}},
	{weight: WeightFlow, needles: []string{"automation", "journey", "entry", "asset id"}},
	{weight: WeightContent, needles: []string{"cloudpage", "ampscript", "ssjs"}},
	{weight: WeightNaming, needles: []string{"naming", "token"}},
}

// Weight returns the weight of a single evidence string.
func Weight(item string) float64 {
	lower := strings.ToLower(item)
	for _, t := range tiers {
		for _, n := range t.needles {
			if strings.Contains(lower, n) {
				return t.weight
			}
		}
	}
	return WeightUnclassified
}

// Score sums the weights of all evidence items and clamps the total to [0, 1].
// Independent corroboration raises the score; it is never averaged.
func Score(items []string) float64 {
	total := 0.0
	for _, item := range items {
		total += Weight(item)
	}
	return Round(math.Min(total, 1.0))
}

// Round fixes a confidence to four decimals so repeated sums print identically.
func Round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
