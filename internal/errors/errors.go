// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when no templates exist for a campaign shortname.
type ErrCampaignNotFound struct {
	Shortname string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %q not found", e.Shortname)
}

// Helper constructor
func NewCampaignNotFound(shortname string) error {
	return &ErrCampaignNotFound{Shortname: shortname}
}

// IsNotFound reports whether err wraps one of the not-found errors.
func IsNotFound(err error) bool {
	var campaignErr *ErrCampaignNotFound
	return errors.As(err, &campaignErr)
}
