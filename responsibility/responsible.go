// Package responsibility decides who must be notified about a contract and why.
//
// The Resolver walks a single contract's role assignments and escalates through
// the department chief to the controller role. The Aggregator runs the Resolver
// across a batch and collects the outcomes into a List grouped by identity.
package responsibility

// Responsibility is the reason an identity was chosen for one contract.
type Responsibility struct {
	Reason     Reason `json:"reason"`
	ContractID string `json:"contract_id"`
}

// Responsible is the identity chosen for a contract together with the reason.
type Responsible struct {
	ID             string         `json:"id"`
	Responsibility Responsibility `json:"responsibility"`
}

// NewResponsible builds a Responsible for one contract.
func NewResponsible(id string, reason Reason, contractID string) Responsible {
	return Responsible{
		ID:             id,
		Responsibility: Responsibility{Reason: reason, ContractID: contractID},
	}
}
