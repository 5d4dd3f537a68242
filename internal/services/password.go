package services

import (
	"fmt"
	"regexp"

	"coopfin/internal/config"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
	symbolPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?~` + "`" + `]`)
)

// WeakPasswordError names the first policy rule the candidate violated.
type WeakPasswordError struct {
	Rule string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password does not meet policy: %s", e.Rule)
}

// ValidatePassword enforces the configured strength policy. All rules
// are checked together; the first violation is reported.
func ValidatePassword(cfg *config.Config, password string) error {
	pc := cfg.Security.Password

	if err := validation.Validate(password,
		validation.Required,
		validation.Length(pc.MinLength, 0),
	); err != nil {
		return &WeakPasswordError{Rule: fmt.Sprintf("minimum length is %d characters", pc.MinLength)}
	}
	if pc.RequireUpper && !upperPattern.MatchString(password) {
		return &WeakPasswordError{Rule: "at least one uppercase letter required"}
	}
	if pc.RequireDigit && !digitPattern.MatchString(password) {
		return &WeakPasswordError{Rule: "at least one digit required"}
	}
	if pc.RequireSymbol && !symbolPattern.MatchString(password) {
		return &WeakPasswordError{Rule: "at least one symbol required"}
	}
	return nil
}
