package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "graph",
		Category:    "entity",
		Version:     "v1",
		Description: "Contract notification facts for graph ingestion",
		Factory:     func() any { return &ContractEntity{} },
	})
	if err != nil {
		panic("failed to register ContractEntity: " + err.Error())
	}
}

// EntityType is the message type the graph ingests entities with.
var EntityType = message.Type{Domain: "graph", Category: "entity", Version: "v1"}

// ContractEntity carries new facts about one contract.
type ContractEntity struct {
	ContractID string           `json:"id"`
	Facts      []message.Triple `json:"triples"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewContractEntity builds an entity from facts about contractID.
func NewContractEntity(contractID string, facts []message.Triple, updatedAt time.Time) (*ContractEntity, error) {
	e := &ContractEntity{ContractID: contractID, Facts: facts, UpdatedAt: updatedAt}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// EntityID returns the contract id.
func (e *ContractEntity) EntityID() string { return e.ContractID }

// Triples returns the facts.
func (e *ContractEntity) Triples() []message.Triple { return e.Facts }

// Schema returns the message type for this payload.
func (e *ContractEntity) Schema() message.Type { return EntityType }

// Validate requires a contract id and at least one fact about that contract.
func (e *ContractEntity) Validate() error {
	if e.ContractID == "" {
		return errors.New("contract id is required")
	}
	if len(e.Facts) == 0 {
		return errors.New("at least one triple is required")
	}
	for i, t := range e.Facts {
		if t.Subject != e.ContractID {
			return fmt.Errorf("triple %d is about %q, not %q", i, t.Subject, e.ContractID)
		}
	}
	return nil
}

func (e *ContractEntity) MarshalJSON() ([]byte, error) {
	type Alias ContractEntity
	return json.Marshal((*Alias)(e))
}

func (e *ContractEntity) UnmarshalJSON(data []byte) error {
	type Alias ContractEntity
	return json.Unmarshal(data, (*Alias)(e))
}
