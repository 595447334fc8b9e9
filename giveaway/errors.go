package giveaway

import "github.com/pkg/errors"

// IneligibleError is returned from Enter when the member does not meet the
// giveaway requirements, the entrant set stays untouched
type IneligibleError struct {
	Reason string
}

func (i *IneligibleError) Error() string {
	return "not eligible: " + i.Reason
}

// IsIneligible reports whether the cause of err is an eligibility rejection
func IsIneligible(err error) bool {
	_, ok := errors.Cause(err).(*IneligibleError)
	return ok
}
