package apierr

import "fmt"

// Category classifies an error for recovery and retry decisions.
type Category string

const (
	CategoryValidation      Category = "VALIDATION"
	CategoryAuthentication  Category = "AUTHENTICATION"
	CategoryAuthorization   Category = "AUTHORIZATION"
	CategoryNotFound        Category = "NOT_FOUND"
	CategoryRateLimit       Category = "RATE_LIMIT"
	CategoryServer          Category = "SERVER"
	CategoryDatabase        Category = "DATABASE"
	CategoryExternalService Category = "EXTERNAL_SERVICE"
	CategoryNetwork         Category = "NETWORK"
	CategoryTimeout         Category = "TIMEOUT"
	CategoryBusinessLogic   Category = "BUSINESS_LOGIC"
	CategoryConfiguration   Category = "CONFIGURATION"
	CategoryUnknown         Category = "UNKNOWN"
)

// retryableCategories lists the categories that default to retryable.
// Everything else defaults to non-retryable unless overridden per instance.
var retryableCategories = map[Category]bool{
	CategoryNetwork:         true,
	CategoryTimeout:         true,
	CategoryServer:          true,
	CategoryExternalService: true,
	CategoryDatabase:        true,
	CategoryRateLimit:       true,
}

// DefaultRetryable reports whether errors of this category retry by default.
func (c Category) DefaultRetryable() bool {
	return retryableCategories[c]
}

// Severity orders errors by operational impact.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalJSON renders the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the string names produced by MarshalJSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"LOW"`:
		*s = SeverityLow
	case `"MEDIUM"`:
		*s = SeverityMedium
	case `"HIGH"`:
		*s = SeverityHigh
	case `"CRITICAL"`:
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity: %s", data)
	}
	return nil
}
