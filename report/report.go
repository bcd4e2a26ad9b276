// Package report renders the outcome of a provisioning run for operators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/ridoystarlord/mongoprov/runner"
)

// New returns the reporter for format ("text" or "json").
func New(format string, w io.Writer) (runner.Reporter, error) {
	switch format {
	case "", "text":
		return &TextReporter{W: w}, nil
	case "json":
		return &JSONReporter{W: w}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
}

// TextReporter prints a colored, human readable summary.
type TextReporter struct {
	W io.Writer
}

func (r *TextReporter) Report(res *runner.Result) error {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	w := r.W
	fmt.Fprintf(w, "📦 Database %s provisioned\n", res.Database)
	fmt.Fprintln(w, strings.Repeat("=", 50))

	fmt.Fprintf(w, "\n📁 Collections: %d created, %d already present\n",
		len(res.CollectionsCreated), len(res.CollectionsExisting))
	for _, name := range res.CollectionsCreated {
		green.Fprint(w, "   + ")
		fmt.Fprintln(w, name)
	}
	for _, name := range res.CollectionsExisting {
		cyan.Fprint(w, "   = ")
		fmt.Fprintln(w, name)
	}

	fmt.Fprintf(w, "\n🔑 Indexes: %d created, %d already present, %d failed\n",
		len(res.IndexesCreated), res.IndexesPresent, len(res.IndexFailures))
	for _, idx := range res.IndexesCreated {
		green.Fprint(w, "   + ")
		fmt.Fprintf(w, "%s.%s\n", idx.Collection, idx.Spec)
	}
	for _, f := range res.IndexFailures {
		if f.Conflict {
			yellow.Fprint(w, "   ! ")
		} else {
			red.Fprint(w, "   ✗ ")
		}
		fmt.Fprintf(w, "%s.%s: %v\n", f.Collection, f.Index, f.Err)
	}

	fmt.Fprintf(w, "\n👤 Admin (%s, policy %s): ", res.Admin.Collection, res.Admin.Policy)
	fmt.Fprintln(w, AdminSummary(res.Admin))

	fmt.Fprintln(w, strings.Repeat("-", 50))
	if len(res.IndexFailures) > 0 {
		yellow.Fprintf(w, "⚠️  Finished with %d index failure(s) in %s\n", len(res.IndexFailures), round(res.Duration))
	} else {
		green.Fprintf(w, "✅ Database initialized successfully in %s\n", round(res.Duration))
	}
	return nil
}

// AdminSummary is a one-line description of the admin bootstrap outcome.
// It never includes the password hash.
func AdminSummary(a runner.AdminResult) string {
	switch a.Outcome {
	case runner.AdminInserted:
		return fmt.Sprintf("created %q", a.Name)
	case runner.AdminKept:
		return fmt.Sprintf("%d existing record(s) kept, %q not inserted", a.Existing, a.Name)
	case runner.AdminReset:
		return fmt.Sprintf("removed %d record(s), created %q", a.Removed, a.Name)
	}
	return "not bootstrapped"
}

// Failure prints what a failed run completed and why it stopped.
func Failure(w io.Writer, res *runner.Result, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "❌ Provisioning failed during %s: %v\n", res.FailedAt, err)
	if n := len(res.CollectionsCreated); n > 0 {
		fmt.Fprintf(w, "   Collections created before the failure: %s\n", strings.Join(res.CollectionsCreated, ", "))
	}
	if n := len(res.IndexesCreated); n > 0 {
		names := make([]string, 0, n)
		for _, idx := range res.IndexesCreated {
			names = append(names, idx.Collection+"."+idx.Name)
		}
		fmt.Fprintf(w, "   Indexes created before the failure: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(w, "💡 Fix the problem and run 'mongoprov provision' again; completed steps are skipped.")
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}

// JSONReporter writes the result as one JSON document.
type JSONReporter struct {
	W io.Writer
}

type jsonIndexFailure struct {
	Collection string `json:"collection"`
	Index      string `json:"index"`
	Conflict   bool   `json:"conflict"`
	Error      string `json:"error"`
}

type jsonAdmin struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Policy     string `json:"policy"`
	Outcome    string `json:"outcome"`
	Existing   int64  `json:"existing,omitempty"`
	Removed    int64  `json:"removed,omitempty"`
}

type jsonResult struct {
	Database            string             `json:"database"`
	State               string             `json:"state"`
	CollectionsCreated  []string           `json:"collections_created"`
	CollectionsExisting []string           `json:"collections_existing"`
	IndexesCreated      []runner.IndexRef  `json:"indexes_created"`
	IndexesPresent      int                `json:"indexes_present"`
	IndexFailures       []jsonIndexFailure `json:"index_failures"`
	Admin               jsonAdmin          `json:"admin"`
	StartedAt           time.Time          `json:"started_at"`
	DurationMS          int64              `json:"duration_ms"`
}

// Report runs as the last step of a run, while the state is still Reporting.
// The document records the state the run reaches once Report returns, so
// "state" is always Done.
func (r *JSONReporter) Report(res *runner.Result) error {
	out := jsonResult{
		Database:            res.Database,
		State:               runner.Done.String(),
		CollectionsCreated:  nonNil(res.CollectionsCreated),
		CollectionsExisting: nonNil(res.CollectionsExisting),
		IndexesCreated:      res.IndexesCreated,
		IndexesPresent:      res.IndexesPresent,
		IndexFailures:       []jsonIndexFailure{},
		Admin: jsonAdmin{
			Collection: res.Admin.Collection,
			Name:       res.Admin.Name,
			Policy:     string(res.Admin.Policy),
			Outcome:    string(res.Admin.Outcome),
			Existing:   res.Admin.Existing,
			Removed:    res.Admin.Removed,
		},
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
	}
	if out.IndexesCreated == nil {
		out.IndexesCreated = []runner.IndexRef{}
	}
	for _, f := range res.IndexFailures {
		out.IndexFailures = append(out.IndexFailures, jsonIndexFailure{
			Collection: f.Collection,
			Index:      f.Index,
			Conflict:   f.Conflict,
			Error:      f.Err.Error(),
		})
	}

	enc := json.NewEncoder(r.W)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
