package contract

// VedaNamespace is the base IRI of the core document schema (prefix v-s:).
const VedaNamespace = "http://semantic-machines.com/veda/veda-schema/"

// MondiNamespace is the base IRI of the contract schema extension (prefix mnd-s:).
const MondiNamespace = "http://semantic-machines.com/veda/mondi-schema/"

// Class IRIs for the entities the notifier reads.
const (
	// ClassContract is a contract document.
	ClassContract = MondiNamespace + "Contract"

	// ClassPerson is an individual employee.
	ClassPerson = VedaNamespace + "Person"

	// ClassDepartment is an organizational unit.
	ClassDepartment = VedaNamespace + "Department"
)

// ExpandIRI turns a compact predicate such as "v-s:valid" into its full IRI.
// Unknown prefixes are returned unchanged.
func ExpandIRI(compact string) string {
	switch {
	case len(compact) > 4 && compact[:4] == "v-s:":
		return VedaNamespace + compact[4:]
	case len(compact) > 6 && compact[:6] == "mnd-s:":
		return MondiNamespace + compact[6:]
	default:
		return compact
	}
}
