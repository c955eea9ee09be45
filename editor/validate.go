package editor

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meikuraledutech/pipeline"
)

const (
	maxStepNameLength    = 255
	maxDescriptionLength = 2000
)

var apiMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Validate runs the pre-save checks and returns every problem found, or nil.
//
// Graph-level problems (no pipeline name, no steps) carry an empty StepID
// and stop validation there. Otherwise duplicate trimmed step names are
// reported once per offending step, followed by the per-step field rules.
func Validate(g Graph) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "Pipeline name is required"})
	}
	if len(g.Steps) == 0 {
		errs = append(errs, ValidationError{Field: "steps", Message: "Pipeline must have at least one step"})
	}
	if len(errs) > 0 {
		return errs
	}

	groups := make(map[string][]ClientID)
	for _, s := range g.Steps {
		if name := strings.TrimSpace(s.Name); name != "" {
			groups[name] = append(groups[name], s.ClientID)
		}
	}
	for _, s := range g.Steps {
		name := strings.TrimSpace(s.Name)
		if len(groups[name]) > 1 {
			errs = append(errs, ValidationError{
				StepID:  s.ClientID,
				Field:   "name",
				Message: fmt.Sprintf("Step name %q is used by %d steps", name, len(groups[name])),
			})
		}
	}

	for _, s := range g.Steps {
		errs = append(errs, validateStep(g, s)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// HasGraphErrors reports whether errs contains a graph-level error, which
// is surfaced as a toast rather than next to a field.
func HasGraphErrors(errs []ValidationError) bool {
	return slices.ContainsFunc(errs, func(e ValidationError) bool { return e.StepID == "" })
}

func validateStep(g Graph, s Step) []ValidationError {
	var errs []ValidationError
	fail := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{StepID: s.ClientID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	name := strings.TrimSpace(s.Name)
	switch {
	case name == "":
		fail("name", "Step name is required")
	case utf8.RuneCountInString(name) > maxStepNameLength:
		fail("name", "Step name must be at most %d characters", maxStepNameLength)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		fail("name", "Step name contains invalid control characters")
	}

	if utf8.RuneCountInString(s.Description) > maxDescriptionLength {
		fail("description", "Description must be at most %d characters", maxDescriptionLength)
	}

	switch s.ScriptType {
	case pipeline.ScriptSQL, pipeline.ScriptPython:
		if strings.TrimSpace(s.ScriptContent) == "" {
			fail("scriptContent", "Script content is required")
		}
	case pipeline.ScriptAPICall:
		if s.APIConfig == nil && s.APIConnectionID == nil {
			fail("apiConfig", "API call steps need an API configuration or a connection")
		}
	default:
		fail("scriptType", "Unknown script type %q", s.ScriptType)
	}

	if c := s.APIConfig; c != nil {
		if !slices.Contains(apiMethods, strings.ToUpper(c.Method)) {
			fail("apiConfig", "Unsupported HTTP method %q", c.Method)
		}
		if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fail("apiConfig", "API URL must be an absolute http or https URL")
		}
	}
	if s.APIConnectionID != nil && *s.APIConnectionID <= 0 {
		fail("apiConnectionId", "API connection reference is invalid")
	}

	if s.OutputDatasetID != nil && *s.OutputDatasetID <= 0 {
		fail("outputDatasetId", "Output dataset reference is invalid")
	}
	seen := make(map[int64]bool, len(s.InputDatasetIDs))
	for _, id := range s.InputDatasetIDs {
		if id <= 0 {
			fail("inputDatasetIds", "Input dataset reference %d is invalid", id)
			continue
		}
		if seen[id] {
			fail("inputDatasetIds", "Input dataset %d is listed more than once", id)
		}
		seen[id] = true
	}

	if !s.LoadStrategy.Valid() {
		fail("loadStrategy", "Unknown load strategy %q", s.LoadStrategy)
	} else if s.LoadStrategy != "" && s.OutputDatasetID == nil {
		fail("loadStrategy", "A load strategy requires an output dataset")
	}

	for _, dep := range s.DependsOn {
		if g.indexOf(dep) < 0 {
			fail("dependsOn", "Depends on a step that no longer exists")
		}
	}

	return errs
}
