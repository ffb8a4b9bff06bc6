// Package directory provides access to contract, person and department documents
// held in the semantic store, plus the organizational-chart lookups the
// responsibility resolver needs.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/contractnotify/vocabulary/contract"
)

// ErrNotFound reports that the store has no entity with the requested id.
var ErrNotFound = errors.New("entity not found")

// Gateway is the capability surface the notifier consumes from the store.
type Gateway interface {
	Loader

	// IsIndividualValid reports whether the entity is currently active.
	IsIndividualValid(ctx context.Context, doc *Document) (bool, error)

	// IsSubUnitOf reports whether the department belongs to the unit rootID,
	// directly or through any chain of parents.
	IsSubUnitOf(ctx context.Context, department *Document, rootID string) (bool, error)

	// GetDepartmentChief returns the chief of the department. ok is false when
	// the department has no chief.
	GetDepartmentChief(ctx context.Context, department *Document) (id string, ok bool, err error)

	// RunStoredQuery returns the ids of the contracts to process.
	RunStoredQuery(ctx context.Context) ([]string, error)
}

// Loader loads single documents.
type Loader interface {
	LoadDocument(ctx context.Context, id string) (*Document, error)
}

// Triple is a predicate-object pair on a document.
type Triple struct {
	Predicate string `json:"predicate" yaml:"predicate"`
	Object    any    `json:"object" yaml:"object"`
}

// Document is an entity loaded from the store.
type Document struct {
	ID      string   `json:"id" yaml:"id"`
	Triples []Triple `json:"triples,omitempty" yaml:"triples,omitempty"`
}

// Values returns every object of the predicate rendered as a string, in store order.
func (d *Document) Values(predicate string) []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, t := range d.Triples {
		if t.Predicate != predicate || t.Object == nil {
			continue
		}
		s := objectString(t.Object)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// First returns the first value of the predicate.
func (d *Document) First(predicate string) (string, bool) {
	values := d.Values(predicate)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// HasValue reports whether the predicate has at least one non-empty value.
func (d *Document) HasValue(predicate string) bool {
	_, ok := d.First(predicate)
	return ok
}

// Bool returns the first value of the predicate interpreted as a boolean.
// ok is false when the predicate is missing or not a boolean.
func (d *Document) Bool(predicate string) (value, ok bool) {
	if d == nil {
		return false, false
	}
	for _, t := range d.Triples {
		if t.Predicate != predicate {
			continue
		}
		switch v := t.Object.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
	}
	return false, false
}

func objectString(obj any) string {
	switch v := obj.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		// Reference objects come back as {"id": "..."} from some gateways.
		if id, ok := v["id"].(string); ok {
			return strings.TrimSpace(id)
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// LoadError reports that an entity could not be fetched from the store.
type LoadError struct {
	ID  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CheckError reports that an organizational lookup failed.
type CheckError struct {
	Check string
	ID    string
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Check, e.ID, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// isIndividualValid is the validity rule shared by the adapters: the entity
// must be explicitly valid and not deleted.
func isIndividualValid(doc *Document) bool {
	if doc == nil {
		return false
	}
	if deleted, ok := doc.Bool(contract.Deleted); ok && deleted {
		return false
	}
	valid, ok := doc.Bool(contract.Valid)
	return ok && valid
}
