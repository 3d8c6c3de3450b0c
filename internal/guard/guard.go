package guard

import (
	"fmt"
	"regexp"
)

// DeniedError is returned when the target schema matches the protected
// schema pattern and no override was supplied. It is a precondition
// failure: no drop has been attempted when this error is seen.
type DeniedError struct {
	Schema  string
	Pattern string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("target schema %s matches protected schema pattern %q; supply force to override", e.Schema, e.Pattern)
}

// Check decides whether a clean run may proceed against schema.
//
// The pattern is matched case-insensitively against the start of the
// schema name. An empty pattern means no protection is configured and
// the check allows everything (fail open); deployments that want a
// safety net must set protection.schema_pattern or
// PROTECTED_SCHEMA_REGEX. Force bypasses the pattern entirely.
func Check(schema, pattern string, force bool) error {
	if force || pattern == "" {
		return nil
	}

	re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
	if err != nil {
		return fmt.Errorf("invalid protected schema pattern %q: %w", pattern, err)
	}

	if re.MatchString(schema) {
		return &DeniedError{Schema: schema, Pattern: pattern}
	}
	return nil
}
