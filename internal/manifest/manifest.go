package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"matchd/pkg/types"
)

// FieldError records one violated constraint in a manifest document.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string { return e.Field + ": " + e.Reason }

// ValidationError carries every violated field found in one pass, so an
// operator can fix a broken manifest in a single round trip.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "manifest validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "manifest validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is a manifest validation failure.
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Parse decodes and validates a raw manifest document. A manifest that
// fails either step never reaches the resolver.
func Parse(raw []byte) (*types.Manifest, error) {
	var m types.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		ve := &ValidationError{}
		switch te := err.(type) {
		case *json.UnmarshalTypeError:
			field := te.Field
			if field == "" {
				field = "(document)"
			}
			ve.Fields = append(ve.Fields, FieldError{Field: field, Reason: fmt.Sprintf("expected %s, got %s", te.Type, te.Value)})
		default:
			ve.Fields = append(ve.Fields, FieldError{Field: "(document)", Reason: err.Error()})
		}
		return nil, ve
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural constraints on a decoded manifest and returns
// a *ValidationError enumerating every violation, or nil.
func Validate(m *types.Manifest) error {
	ve := &ValidationError{}
	if strings.TrimSpace(m.RunID) == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "run_id", Reason: "required"})
	}
	if strings.TrimSpace(m.DatasetVersion.String()) == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "dataset_version", Reason: "required"})
	}
	if strings.TrimSpace(m.TrainedAt) == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "trained_at", Reason: "required"})
	}
	if len(m.Models) == 0 {
		ve.Fields = append(ve.Fields, FieldError{Field: "models", Reason: "must declare at least one model"})
	}
	validateResources(ve, "models", m.Models)
	validateResources(ve, "preprocessing", m.Preprocessing)
	validateResources(ve, "attribution", m.Attribution)
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func validateResources(ve *ValidationError, list string, resources []types.Resource) {
	seen := make(map[string]bool, len(resources))
	for i, r := range resources {
		field := func(name string) string { return fmt.Sprintf("%s[%d].%s", list, i, name) }
		id := strings.TrimSpace(r.ID)
		switch {
		case id == "":
			ve.Fields = append(ve.Fields, FieldError{Field: field("id"), Reason: "required"})
		case seen[id]:
			ve.Fields = append(ve.Fields, FieldError{Field: field("id"), Reason: "duplicate id " + strconvQuote(id)})
		default:
			seen[id] = true
		}
		if strings.TrimSpace(r.Path) == "" {
			ve.Fields = append(ve.Fields, FieldError{Field: field("path"), Reason: "required"})
		}
		if strings.TrimSpace(r.SHA256) == "" {
			ve.Fields = append(ve.Fields, FieldError{Field: field("sha256"), Reason: "required"})
		}
		if r.SizeBytes < 0 {
			ve.Fields = append(ve.Fields, FieldError{Field: field("size_bytes"), Reason: "must be >= 0"})
		}
	}
}

func strconvQuote(s string) string { return fmt.Sprintf("%q", s) }
