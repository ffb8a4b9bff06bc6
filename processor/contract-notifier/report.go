package contractnotifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/contractnotify/notify"
)

func init() {
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "contract",
		Category:    "notify-run",
		Version:     "v1",
		Description: "Summary of one contract notification batch",
		Factory:     func() any { return &RunReport{} },
	}); err != nil {
		panic("failed to register RunReport: " + err.Error())
	}
}

// RunSubjectPrefix is followed by the run id on the wire.
const RunSubjectPrefix = "contract.notify.run."

// RunReportType is the message type for run reports.
var RunReportType = message.Type{
	Domain:   "contract",
	Category: "notify-run",
	Version:  "v1",
}

// RunReport summarizes one batch run.
type RunReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Contracts is how many ids the stored query returned.
	Contracts int `json:"contracts"`

	// Failed lists contracts whose resolution failed and went to the controller.
	Failed []string `json:"failed,omitempty"`

	// Resolutions counts responsibilities by reason code.
	Resolutions map[string]int `json:"resolutions"`

	// Messages counts composed letters by status.
	Messages map[notify.Status]int `json:"messages"`

	Results []notify.Outcome `json:"results"`
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Schema returns the message type for this payload.
func (r *RunReport) Schema() message.Type {
	return RunReportType
}

// Validate validates the report.
func (r *RunReport) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}

// MarshalJSON marshals the report to JSON.
func (r *RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the report from JSON.
func (r *RunReport) UnmarshalJSON(data []byte) error {
	type Alias RunReport
	return json.Unmarshal(data, (*Alias)(r))
}
