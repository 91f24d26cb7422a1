package deploy

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuemby/modelctl/pkg/release"
	"github.com/cuemby/modelctl/pkg/types"
)

// Entry is the result of one executed stage
type Entry struct {
	Stage     types.StageName   `json:"stage"`
	Status    types.StageStatus `json:"status"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration"`
	Warnings  []*StageError     `json:"warnings,omitempty"`
	Error     *StageError       `json:"error,omitempty"`
}

// Outcome accumulates the entries of one run, in execution order. A stage
// that fails is the last entry; later stages never start.
type Outcome struct {
	RunID      string                  `json:"runId"`
	Request    types.DeploymentRequest `json:"request"`
	Profile    *types.ModelProfile     `json:"profile,omitempty"`
	Snapshot   *types.ResourceSnapshot `json:"snapshot,omitempty"`
	Release    *release.Spec           `json:"release,omitempty"`
	Output     string                  `json:"releaseOutput,omitempty"`
	Entries    []Entry                 `json:"entries"`
	Err        *StageError             `json:"error,omitempty"`
	LogPath    string                  `json:"logPath,omitempty"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
}

// begin appends a running entry for stage and returns its index
func (o *Outcome) begin(stage types.StageName, at time.Time) int {
	o.Entries = append(o.Entries, Entry{
		Stage:     stage,
		Status:    types.StatusRunning,
		Timestamp: at,
	})
	return len(o.Entries) - 1
}

// finish moves entry i to a terminal status. Completed entries are not
// modified again.
func (o *Outcome) finish(i int, status types.StageStatus, message string, warnings []*StageError, err *StageError, at time.Time) {
	e := &o.Entries[i]
	if e.Status.Terminal() {
		return
	}
	e.Status = status
	e.Message = message
	e.Warnings = warnings
	e.Error = err
	e.Duration = at.Sub(e.Timestamp)
	if err != nil && o.Err == nil {
		o.Err = err
	}
}

// Warnings returns every warning in stage order
func (o *Outcome) Warnings() []*StageError {
	var all []*StageError
	for _, e := range o.Entries {
		all = append(all, e.Warnings...)
	}
	return all
}

// Succeeded reports whether no stage failed
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// ExitCode is 0 on success, including runs with warnings
func (o *Outcome) ExitCode() int {
	if o.Succeeded() {
		return 0
	}
	return 1
}

// Entry returns the entry of stage, if it ran
func (o *Outcome) Entry(stage types.StageName) (Entry, bool) {
	for _, e := range o.Entries {
		if e.Stage == stage {
			return e, true
		}
	}
	return Entry{}, false
}

// Summary is the final line of a run
func (o *Outcome) Summary() string {
	if o.Err != nil {
		return fmt.Sprintf("Deployment of %s to %s failed at %s: %s: %s",
			o.Request.ModelType, o.Request.Environment, o.Err.Stage, o.Err.Kind, o.Err.Message)
	}

	mode := "succeeded"
	if o.Request.DryRun {
		mode = "dry run succeeded"
	}
	if n := len(o.Warnings()); n > 0 {
		return fmt.Sprintf("Deployment of %s to %s %s with %d warning(s)", o.Request.ModelType, o.Request.Environment, mode, n)
	}
	return fmt.Sprintf("Deployment of %s to %s %s", o.Request.ModelType, o.Request.Environment, mode)
}

// WriteJSON writes the outcome as indented JSON
func (o *Outcome) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

// WriteText writes a stage table followed by warnings and failure detail
func (o *Outcome) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", o.RunID)
	fmt.Fprintf(&b, "  Model:       %s\n", o.Request.ModelType)
	fmt.Fprintf(&b, "  Environment: %s\n", o.Request.Environment)
	fmt.Fprintf(&b, "  Namespace:   %s\n", o.Request.Namespace)
	if o.Release != nil {
		fmt.Fprintf(&b, "  Release:     %s\n", o.Release.Name)
	}
	if o.LogPath != "" {
		fmt.Fprintf(&b, "  Log:         %s\n", o.LogPath)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%-16s %-16s %-10s %s\n", "STAGE", "STATUS", "DURATION", "MESSAGE")
	for _, e := range o.Entries {
		fmt.Fprintf(&b, "%-16s %-16s %-10s %s\n", e.Stage, e.Status, e.Duration.Round(time.Millisecond), e.Message)
	}

	if warnings := o.Warnings(); len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, warn := range warnings {
			fmt.Fprintf(&b, "  ! %s %s: %s\n", warn.Stage, warn.Kind, warn.Message)
		}
	}

	if o.Err != nil {
		fmt.Fprintf(&b, "\nFailure: %s\n", o.Err.Error())
		for _, cause := range o.Err.Causes {
			fmt.Fprintf(&b, "  - %s: %s\n", cause.Kind, cause.Message)
		}
		if o.Err.Detail != "" {
			b.WriteString("\n")
			b.WriteString(o.Err.Detail)
			if !strings.HasSuffix(o.Err.Detail, "\n") {
				b.WriteString("\n")
			}
		}
	}

	if o.Request.DryRun && o.Output != "" {
		b.WriteString("\nRelease manager output:\n")
		b.WriteString(o.Output)
		if !strings.HasSuffix(o.Output, "\n") {
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
