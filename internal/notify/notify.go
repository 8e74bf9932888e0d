// Package notify announces finished patch runs to external sinks.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mavwarf/anchorpatch/internal/config"
	"github.com/Mavwarf/anchorpatch/internal/journal"
)

// Report is the JSON payload sent to every sink.
type Report struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Target       string    `json:"target"`
	Plan         string    `json:"plan,omitempty"`
	Outcome      string    `json:"outcome"`
	Written      bool      `json:"written"`
	Replacements int       `json:"replacements"`
	Error        string    `json:"error,omitempty"`
}

// NewReport converts a journal entry into a Report.
func NewReport(r journal.Run) Report {
	return Report{
		ID:           r.ID,
		Time:         r.Time,
		Target:       r.Target,
		Plan:         r.Plan,
		Outcome:      string(r.Outcome),
		Written:      r.Written,
		Replacements: r.Replacements(),
		Error:        r.Error,
	}
}

// shortID is the first block of a run ID, enough to tell concurrent runs
// apart in client IDs and logs.
func (r Report) shortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Dispatch sends rep to every sink configured in n. All sinks are tried;
// their errors are joined.
func Dispatch(n config.Notify, rep Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	var errs []error
	if n.Webhook != nil {
		if err := SendWebhook(*n.Webhook, rep, body); err != nil {
			errs = append(errs, err)
		}
	}
	if n.MQTT != nil {
		if err := Publish(*n.MQTT, rep, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
