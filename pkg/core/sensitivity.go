package core

// Sensitivity is the PII category assigned to a field.
type Sensitivity string

// Sensitivity categories, lowest to highest precedence.
const (
	SensitivityNone       Sensitivity = "none"
	SensitivityEmail      Sensitivity = "email"
	SensitivityPhone      Sensitivity = "phone"
	SensitivityIdentifier Sensitivity = "identifier"
)

// Rank orders categories for precedence: identifier > phone > email > none.
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityIdentifier:
		return 3
	case SensitivityPhone:
		return 2
	case SensitivityEmail:
		return 1
	default:
		return 0
	}
}

// IsPII reports whether the category is anything other than none.
func (s Sensitivity) IsPII() bool {
	return s.Rank() > 0
}

// Classification is the outcome of classifying one field.
type Classification struct {
	Category Sensitivity `json:"category"`
	// Reasons lists every heuristic that fired, in evaluation order
	Reasons []string `json:"reasons,omitempty"`
}
