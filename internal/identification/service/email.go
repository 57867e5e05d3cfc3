package service

import (
	"regexp"

	"phoneai_backend/internal/identification/transport"
	"phoneai_backend/platform/sanitize"
)

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)

// ValidateEmail cleans dictated email text and checks its format. The
// cleaned address is returned even when it is invalid.
func ValidateEmail(spoken string) transport.EmailCheck {
	normalized := sanitize.SpokenEmail(spoken)
	return transport.EmailCheck{
		Original:   spoken,
		Normalized: normalized,
		Valid:      emailPattern.MatchString(normalized),
	}
}
