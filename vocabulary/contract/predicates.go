package contract

import "github.com/c360studio/semstreams/vocabulary"

// Contract role predicates. Each points at zero or more person or department
// entities; only the first value is ever used.
const (
	// Executor is the specialist executing the contract.
	Executor = "mnd-s:executorSpecialistOfContract"

	// Supporter is the specialist supporting the contract.
	Supporter = "mnd-s:supportSpecialistOfContract"

	// Manager is the contract manager.
	Manager = "mnd-s:ContractManager"

	// ResponsibleDepartment is the department accountable for the contract.
	ResponsibleDepartment = "v-s:responsibleDepartment"

	// RegistrationNumber is the human-readable registration number.
	RegistrationNumber = "v-s:registrationNumber"
)

// Individual predicates shared by persons and departments.
const (
	// Valid marks an individual as active. Anything other than true is inactive.
	Valid = "v-s:valid"

	// Deleted marks an individual as removed from the store.
	Deleted = "v-s:deleted"
)

// Organizational chart predicates.
const (
	// ParentUnit links a department to the unit it belongs to.
	ParentUnit = "v-s:parentUnit"

	// HasChief links a department to the person heading it.
	HasChief = "v-s:hasChief"
)

// Notification outcome predicates written back to the graph.
const (
	// NotifiedResponsible is the identity chosen to receive the notification.
	NotifiedResponsible = "mnd-s:notifiedResponsible"

	// NotificationReason is the escalation reason code.
	NotificationReason = "mnd-s:notificationReason"

	// NotificationMail is the id of the prepared mail object.
	NotificationMail = "mnd-s:notificationMail"

	// NotifiedAt is the RFC3339 time the notification was prepared.
	NotifiedAt = "mnd-s:notifiedAt"
)

func init() {
	// Contract roles
	vocabulary.Register(Executor,
		vocabulary.WithDescription("Specialist executing the contract"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(Executor)))

	vocabulary.Register(Supporter,
		vocabulary.WithDescription("Specialist supporting the contract"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(Supporter)))

	vocabulary.Register(Manager,
		vocabulary.WithDescription("Manager of the contract"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(Manager)))

	vocabulary.Register(ResponsibleDepartment,
		vocabulary.WithDescription("Department accountable for the contract"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(ResponsibleDepartment)))

	vocabulary.Register(RegistrationNumber,
		vocabulary.WithDescription("Registration number of the contract"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(ExpandIRI(RegistrationNumber)))

	// Individuals
	vocabulary.Register(Valid,
		vocabulary.WithDescription("Individual is active and may receive notifications"),
		vocabulary.WithDataType("bool"),
		vocabulary.WithIRI(ExpandIRI(Valid)))

	vocabulary.Register(Deleted,
		vocabulary.WithDescription("Individual was deleted from the store"),
		vocabulary.WithDataType("bool"),
		vocabulary.WithIRI(ExpandIRI(Deleted)))

	// Org chart
	vocabulary.Register(ParentUnit,
		vocabulary.WithDescription("Parent organizational unit of a department"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(ParentUnit)))

	vocabulary.Register(HasChief,
		vocabulary.WithDescription("Person heading the department"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(HasChief)))

	// Outcomes
	vocabulary.Register(NotifiedResponsible,
		vocabulary.WithDescription("Identity notified about the contract"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(ExpandIRI(NotifiedResponsible)))

	vocabulary.Register(NotificationReason,
		vocabulary.WithDescription("Escalation reason: executor, department, controller, controller-not-uz"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(ExpandIRI(NotificationReason)))

	vocabulary.Register(NotificationMail,
		vocabulary.WithDescription("Prepared mail object id"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(ExpandIRI(NotificationMail)))

	vocabulary.Register(NotifiedAt,
		vocabulary.WithDescription("RFC3339 timestamp of the notification"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(ExpandIRI(NotifiedAt)))
}
