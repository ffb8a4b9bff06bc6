package responsibility

import "fmt"

// ResolutionError reports that a contract could not be loaded, so no
// responsible could be determined for it.
type ResolutionError struct {
	ContractID string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve responsible for %s: %v", e.ContractID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
