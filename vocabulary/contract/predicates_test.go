package contract

import (
	"testing"

	"github.com/c360studio/semstreams/vocabulary"
)

func TestPredicatesRegistered(t *testing.T) {
	predicates := []string{
		Executor,
		Supporter,
		Manager,
		ResponsibleDepartment,
		RegistrationNumber,
		Valid,
		Deleted,
		ParentUnit,
		HasChief,
		NotifiedResponsible,
		NotificationReason,
		NotificationMail,
		NotifiedAt,
	}

	for _, pred := range predicates {
		t.Run(pred, func(t *testing.T) {
			meta := vocabulary.GetPredicateMetadata(pred)
			if meta.Description == "" {
				t.Errorf("predicate %s not registered or missing description", pred)
			}
		})
	}
}

func TestExpandIRI(t *testing.T) {
	tests := []struct {
		compact string
		want    string
	}{
		{"v-s:valid", VedaNamespace + "valid"},
		{"mnd-s:ContractManager", MondiNamespace + "ContractManager"},
		{"d:contract_controller_role", "d:contract_controller_role"},
		{"v-s:", "v-s:"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.compact, func(t *testing.T) {
			if got := ExpandIRI(tt.compact); got != tt.want {
				t.Errorf("ExpandIRI(%q) = %q, want %q", tt.compact, got, tt.want)
			}
		})
	}
}
