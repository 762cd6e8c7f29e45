// Package pii classifies storage-object fields by personal-data sensitivity.
//
// Classification is a set of case-insensitive name and type heuristics. Every
// heuristic that fires is kept as a reason; the category is the highest-ranked
// one by the precedence identifier > phone > email > none.
package pii

import (
	"strings"

	"github.com/leapstack-labs/mclineage/pkg/core"
)

// Reason strings recorded on a classification.
const (
	ReasonEmail      = "email pattern"
	ReasonPhone      = "phone pattern"
	ReasonIdentifier = "ssn-like"
)

// Declared field types that carry their own sensitivity.
const (
	TypeEmailAddress = "EmailAddress"
	TypePhone        = "Phone"
)

type rule struct {
	category core.Sensitivity
	reason   string
	needles  []string
}

// nameRules run against the lower-cased field name, in this order.
var nameRules = []rule{
	{category: core.SensitivityEmail, reason: ReasonEmail, needles: []string{"email", "e-mail"}},
	{category: core.SensitivityPhone, reason: ReasonPhone, needles: []string{"phone", "mobile"}},
	{category: core.SensitivityIdentifier, reason: ReasonIdentifier, needles: []string{"ssn", "social"}},
}

// Classify returns the sensitivity of a field from its name and declared type.
func Classify(name, fieldType string) core.Classification {
	lname := strings.ToLower(name)
	result := core.Classification{Category: core.SensitivityNone}

	raise := func(s core.Sensitivity) {
		if s.Rank() > result.Category.Rank() {
			result.Category = s
		}
	}

	for _, r := range nameRules {
		if containsAny(lname, r.needles) {
			result.Reasons = append(result.Reasons, r.reason)
			raise(r.category)
		}
	}

	switch {
	case strings.EqualFold(fieldType, TypeEmailAddress):
		if !hasReason(result.Reasons, ReasonEmail) {
			result.Reasons = append(result.Reasons, ReasonEmail)
		}
		result.Reasons = append(result.Reasons, "type:"+TypeEmailAddress)
		raise(core.SensitivityEmail)
	case strings.EqualFold(fieldType, TypePhone):
		result.Reasons = append(result.Reasons, "type:"+TypePhone)
		raise(core.SensitivityPhone)
	}

	return result
}

// ClassifyFields sets Sensitivity on every field that has not been classified yet.
// Already classified fields are left untouched.
func ClassifyFields(fields []core.Field) {
	for i := range fields {
		if fields[i].Sensitivity != nil {
			continue
		}
		c := Classify(fields[i].Name, fields[i].Type)
		fields[i].Sensitivity = &c
	}
}

// Summary counts classified fields by category.
type Summary struct {
	Email      int `json:"email"`
	Phone      int `json:"phone"`
	Identifier int `json:"identifier"`
}

// Total returns the number of PII fields.
func (s Summary) Total() int {
	return s.Email + s.Phone + s.Identifier
}

// Summarize counts the PII categories of already classified fields.
func Summarize(fields []core.Field) Summary {
	var s Summary
	for _, f := range fields {
		if f.Sensitivity == nil || !f.Sensitivity.Category.IsPII() {
			continue
		}
		switch f.Sensitivity.Category {
		case core.SensitivityEmail:
			s.Email++
		case core.SensitivityPhone:
			s.Phone++
		case core.SensitivityIdentifier:
			s.Identifier++
		}
	}
	return s
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasReason(reasons []string, reason string) bool {
	for _, r := range reasons {
		if r == reason {
			return true
		}
	}
	return false
}
