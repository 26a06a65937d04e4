package evalcfg

import (
	"errors"
	"fmt"
	"strings"

	"yqhp/eval-fanout/pkg/jsondoc"
)

var (
	// ErrInvalidConfig matches every structural validation failure.
	ErrInvalidConfig = errors.New("invalid evaluation configuration")
	// ErrMissingKey matches failures caused by an absent required key.
	ErrMissingKey = errors.New("missing required key")
	// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// ValidationError describes one structural problem.
type ValidationError struct {
	Field   string
	Message string
	Missing bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Missing {
		return ErrMissingKey
	}
	return nil
}

// ValidationErrors collects every problem found in one configuration.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return fmt.Sprintf("evaluation configuration is invalid:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(e)+1)
	errs = append(errs, ErrInvalidConfig)
	for i := range e {
		errs = append(errs, &e[i])
	}
	return errs
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

type validator struct {
	errors ValidationErrors
}

func (v *validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *validator) addMissing(field string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: "is required", Missing: true})
}

// Validate checks the keys partitioning and caching rely on. All problems are
// reported together as ValidationErrors.
func (c *Config) Validate() error {
	v := &validator{}

	v.requireString(c.doc, KeyProjectID)
	v.requireString(c.doc, KeyExperimentID)
	v.requireString(c.doc, KeyJSONBaseDir)
	v.requireString(c.doc, KeyColdataBaseDir)

	if models := v.requireObject(c.doc, KeyModels); models != nil && models.Len() == 0 {
		v.addError(KeyModels, "at least one model is required")
	}
	if obs := v.requireObject(c.doc, KeyObservations); obs != nil {
		if obs.Len() == 0 {
			v.addError(KeyObservations, "at least one observation network is required")
		}
		obs.Range(func(key string, value any) bool {
			v.validateNetwork(KeyObservations+"."+key, value)
			return true
		})
	}

	for _, key := range []string{KeyVariableOrder, KeyModelOrder} {
		if raw, ok := c.doc.Get(key); ok {
			if _, ok := jsondoc.AsStrings(raw); !ok {
				v.addError(key, "must be a list of strings")
			}
		}
	}
	if raw, ok := c.doc.Get(KeyPlotTypes); ok {
		if _, ok := raw.(*jsondoc.Object); !ok {
			v.addError(KeyPlotTypes, "must be a mapping keyed by model name")
		}
	}
	if raw, ok := c.doc.Get(KeyIOAuxFile); ok {
		if _, ok := raw.(string); !ok {
			v.addError(KeyIOAuxFile, "must be a string")
		}
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *validator) validateNetwork(field string, value any) {
	entry, ok := value.(*jsondoc.Object)
	if !ok {
		v.addError(field, "must be a mapping")
		return
	}
	superObs, _ := entry.GetBool(KeySuperObs)
	if !superObs {
		v.requireString(entry, KeyObsID, field)
	} else if raw, ok := entry.Get(KeyObsID); !ok {
		v.addMissing(field + "." + KeyObsID)
	} else if ids, ok := jsondoc.AsStrings(raw); !ok || len(ids) == 0 {
		v.addError(field+"."+KeyObsID, "must be a name or a list of constituent network names")
	}

	if raw, ok := entry.Get(KeyObsVars); !ok {
		v.addMissing(field + "." + KeyObsVars)
	} else if vars, ok := jsondoc.AsStrings(raw); !ok || len(vars) == 0 {
		v.addError(field+"."+KeyObsVars, "must be a variable name or a non-empty list of names")
	}

	if raw, ok := entry.Get(KeySuperObs); ok {
		if _, ok := raw.(bool); !ok {
			v.addError(field+"."+KeySuperObs, "must be a boolean")
		}
	}
	if raw, ok := entry.Get(KeyDataSource); ok && raw != nil {
		if _, ok := raw.(*jsondoc.Object); !ok {
			v.addError(field+"."+KeyDataSource, "must be a mapping")
		}
	}
}

func (v *validator) requireString(obj *jsondoc.Object, key string, prefix ...string) {
	field := key
	if len(prefix) > 0 {
		field = prefix[0] + "." + key
	}
	raw, ok := obj.Get(key)
	if !ok {
		v.addMissing(field)
		return
	}
	if s, ok := raw.(string); !ok || s == "" {
		v.addError(field, "must be a non-empty string")
	}
}

func (v *validator) requireObject(obj *jsondoc.Object, key string) *jsondoc.Object {
	raw, ok := obj.Get(key)
	if !ok {
		v.addMissing(key)
		return nil
	}
	child, ok := raw.(*jsondoc.Object)
	if !ok {
		v.addError(key, "must be a mapping")
		return nil
	}
	return child
}
