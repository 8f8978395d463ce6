package domain

import "strings"

// Severity of a single validation finding.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ValidationResult is one finding from the quality rules. Severity ERROR
// implies Valid == false.
type ValidationResult struct {
	Valid    bool
	Severity Severity
	Code     string
	Message  string
	Details  map[string]any
}

func ValidationOK() ValidationResult {
	return ValidationResult{Valid: true, Severity: SeverityInfo, Code: "OK", Message: "Validation passed"}
}

func ValidationWarning(code, message string) ValidationResult {
	return ValidationResult{Valid: true, Severity: SeverityWarning, Code: code, Message: message}
}

func ValidationError(code, message string) ValidationResult {
	return ValidationResult{Valid: false, Severity: SeverityError, Code: code, Message: message}
}

// ValidationReport aggregates the findings for one contribution.
type ValidationReport struct {
	Results []ValidationResult
}

// Add appends significant findings; passing INFO results are dropped to keep
// the report readable.
func (r *ValidationReport) Add(results ...ValidationResult) {
	for _, res := range results {
		if res.Severity == SeverityInfo && res.Valid {
			continue
		}
		r.Results = append(r.Results, res)
	}
}

// Passing reports whether the contribution may proceed: true iff the report
// holds no ERROR findings, regardless of warnings.
func (r ValidationReport) Passing() bool {
	for _, res := range r.Results {
		if res.Severity == SeverityError {
			return false
		}
	}
	return true
}

// ErrorText joins all error messages for the rejection message shown to the
// submitter.
func (r ValidationReport) ErrorText() string {
	var msgs []string
	for _, res := range r.Results {
		if res.Severity == SeverityError {
			msgs = append(msgs, res.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// WarningText joins all warning messages, carried forward as advisory text
// for reviewers.
func (r ValidationReport) WarningText() string {
	var msgs []string
	for _, res := range r.Results {
		if res.Severity == SeverityWarning {
			msgs = append(msgs, res.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
