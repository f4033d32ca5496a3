package errors

import (
	"encoding/json"
	"errors"
)

// Location identifies a place in the build-map's domain that an error
// pertains to: an artifact path, a source path, or both. Unlike a parser's
// source span this subsystem never inspects the analyzed language's text,
// so Location carries whole-file granularity only.
type Location struct {
	ArtifactPath string `json:"artifact_path,omitempty"`
	SourcePath   string `json:"source_path,omitempty"`
	Target       string `json:"target,omitempty"`
}

// Fix represents a suggested remediation with a confidence score, attached
// to recoverable error classes (MergeConflict, LoadError, ModuleNotTracked).
type Fix struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// Report is the canonical structured error type for this subsystem.
// All error builders return *Report, which can be wrapped as ReportError.
type Report struct {
	Schema  string         `json:"schema"`           // Always "buildtrack.error/v1"
	Code    string         `json:"code"`             // Error code (MRG001, TRK005, etc.)
	Phase   string         `json:"phase"`            // Phase: "buildmap", "artifacts", "builder", etc.
	Message string         `json:"message"`          // Human-readable message
	Loc     *Location      `json:"location,omitempty"` // Affected artifact/source/target (optional)
	Data    map[string]any `json:"data,omitempty"`  // Structured data (sorted keys)
	Fix     *Fix           `json:"fix,omitempty"`   // Suggested fix (optional)
}

// ReportError wraps a Report as an error.
// This allows structured reports to survive errors.As() unwrapping.
type ReportError struct {
	Rep *Report
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport attempts to extract a Report from an error chain.
// Returns the Report and true if found, nil and false otherwise.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as a ReportError.
// Call sites should return errors.WrapReport(report) to preserve structure.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// ToJSON converts a Report to JSON (deterministic, sorted keys).
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error

	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}

	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WithFix attaches a suggested remediation to the report and returns it for
// chaining at the call site.
func (r *Report) WithFix(suggestion string, confidence float64) *Report {
	r.Fix = &Fix{Suggestion: suggestion, Confidence: confidence}
	return r
}

// WithLocation attaches an affected-location hint and returns the report for
// chaining at the call site.
func (r *Report) WithLocation(loc Location) *Report {
	r.Loc = &loc
	return r
}

// NewGeneric wraps an arbitrary error as a Report tagged with phase, for
// call sites that have not yet classified the failure into one of the
// registered error codes.
func NewGeneric(phase string, err error) *Report {
	return &Report{
		Schema:  "buildtrack.error/v1",
		Code:    "GENERIC",
		Phase:   phase,
		Message: err.Error(),
		Data:    map[string]any{},
	}
}

// New constructs a Report from a registered error code, looking up its
// phase from the registry so call sites cannot drift from the taxonomy.
func New(code, message string) *Report {
	phase := "unknown"
	if info, ok := GetErrorInfo(code); ok {
		phase = info.Phase
	}
	return &Report{
		Schema:  "buildtrack.error/v1",
		Code:    code,
		Phase:   phase,
		Message: message,
	}
}
