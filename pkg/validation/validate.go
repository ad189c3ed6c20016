package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Rules bounds user-supplied payloads. Defaults apply when a field is zero.
type Rules struct {
	MaxContentBytes int
	MaxNameLen      int
}

const (
	defaultMaxContentBytes = 64 * 1024
	defaultMaxNameLen      = 200
)

var rules = Rules{
	MaxContentBytes: defaultMaxContentBytes,
	MaxNameLen:      defaultMaxNameLen,
}

// SetRules installs the global validation rules, filling zero fields with
// defaults.
func SetRules(r Rules) {
	if r.MaxContentBytes <= 0 {
		r.MaxContentBytes = defaultMaxContentBytes
	}
	if r.MaxNameLen <= 0 {
		r.MaxNameLen = defaultMaxNameLen
	}
	rules = r
}

// ValidateContent checks message content: required, non-blank, bounded.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content is required")
	}
	if len(content) > rules.MaxContentBytes {
		return fmt.Errorf("content exceeds %d bytes", rules.MaxContentBytes)
	}
	return nil
}

// ValidateUserID checks ids that become storage key segments: required,
// bounded, and free of the ":" key separator so an id cannot alias another
// pair's conversation key.
func ValidateUserID(id string) error {
	if id == "" {
		return errors.New("user id required")
	}
	if len(id) > 128 {
		return errors.New("user id too long")
	}
	if strings.ContainsAny(id, ": \t\n") {
		return errors.New("user id must not contain ':' or whitespace")
	}
	return nil
}

// ValidateName checks user names and item titles: required, bounded.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if len(name) > rules.MaxNameLen {
		return fmt.Errorf("name exceeds %d characters", rules.MaxNameLen)
	}
	return nil
}
