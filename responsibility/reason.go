package responsibility

import (
	"encoding/json"
	"fmt"
)

// Reason records why an identity was chosen for a contract.
type Reason int

const (
	// ReasonUnknown is the zero value; it never comes out of the resolver.
	ReasonUnknown Reason = iota

	// ReasonExecutor: the executor is valid but the control chain around them is incomplete.
	ReasonExecutor

	// ReasonDepartment: the executor is invalid and the department chief takes over.
	ReasonDepartment

	// ReasonController: no valid specific responsible, or a fully staffed contract.
	ReasonController

	// ReasonControllerNotUZ: the responsible department is outside the organization root.
	ReasonControllerNotUZ
)

var reasonNames = map[Reason]string{
	ReasonExecutor:        "executor",
	ReasonDepartment:      "department",
	ReasonController:      "controller",
	ReasonControllerNotUZ: "controller-not-uz",
}

// Reasons lists every known reason in declaration order.
func Reasons() []Reason {
	return []Reason{ReasonExecutor, ReasonDepartment, ReasonController, ReasonControllerNotUZ}
}

// String returns the wire code of the reason.
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	_, ok := reasonNames[r]
	return ok
}

// ParseReason converts a wire code back into a Reason.
func ParseReason(s string) (Reason, error) {
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonUnknown, fmt.Errorf("unknown reason %q", s)
}

// MarshalJSON encodes the reason as its wire code.
func (r Reason) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal reason: unknown reason %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire code.
func (r *Reason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReason(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
