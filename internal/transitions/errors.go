package transitions

import "fmt"

// ValidationError reports data that cannot be aggregated: a column outside
// the categorical cardinality bounds, or a column pair with no complete
// cases to analyze. Column is empty when the failure concerns the pair
// rather than one column.
type ValidationError struct {
	Column string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("data validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("data validation failed for column %q: %s", e.Column, e.Reason)
}
