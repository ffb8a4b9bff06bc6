package notify

import (
	"encoding/json"

	"github.com/c360studio/contractnotify/responsibility"
)

// Status is the outcome of composing one letter.
type Status string

const (
	StatusPrepared Status = "prepared"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Result describes one composed letter.
type Result struct {
	// Recipient received the letter, after the re-check.
	Recipient string

	// Replaced is the original recipient when the re-check swapped it out.
	Replaced string

	Reason      responsibility.Reason
	ContractIDs []string
	TemplateKey string
	MailID      string
	Status      Status
	Err         error
}

func (r Result) skip(err error) Result {
	r.Status = StatusSkipped
	r.Err = err
	return r
}

func (r Result) fail(err error) Result {
	r.Status = StatusFailed
	r.Err = err
	return r
}

// Outcome is the serializable form of a Result.
type Outcome struct {
	Recipient   string   `json:"recipient"`
	Replaced    string   `json:"replaced,omitempty"`
	Reason      string   `json:"reason"`
	ContractIDs []string `json:"contract_ids"`
	TemplateKey string   `json:"template_key,omitempty"`
	MailID      string   `json:"mail_id,omitempty"`
	Status      Status   `json:"status"`
	Error       string   `json:"error,omitempty"`
}

// Outcome renders Reason by its code and Err as a string, so unknown reasons
// still encode.
func (r Result) Outcome() Outcome {
	o := Outcome{
		Recipient:   r.Recipient,
		Replaced:    r.Replaced,
		Reason:      r.Reason.String(),
		ContractIDs: r.ContractIDs,
		TemplateKey: r.TemplateKey,
		MailID:      r.MailID,
		Status:      r.Status,
	}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	return o
}

// MarshalJSON encodes the result as its Outcome.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Outcome())
}

// Counts tallies results by status.
func Counts(results []Result) map[Status]int {
	counts := make(map[Status]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
