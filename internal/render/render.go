// Package render prints probe results for operators (styled text) and for
// machines (JSON).
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ceph-check/internal/diagnose"
	"ceph-check/internal/probe"
	"ceph-check/internal/report"
)

var sectionTitles = map[report.Subsystem]string{
	report.SubsystemOverall:         "Overall",
	report.SubsystemHealth:          "Health summary",
	report.SubsystemMonitors:        "Monitors",
	report.SubsystemDaemons:         "OSDs",
	report.SubsystemPools:           "Pools",
	report.SubsystemPlacementGroups: "Placement groups",
}

// Text writes res for a terminal. Diagnostics keep their order; a heading
// is printed whenever the subsystem changes.
func Text(w io.Writer, res *probe.Result, failOnWarn bool) error {
	var sb strings.Builder

	if res.Err != nil {
		sb.WriteString(marker(diagnose.SeverityError) + " " + res.Err.Error() + "\n")
		if hint := probe.Hint(res.Err); hint != "" {
			sb.WriteString("  " + mutedStyle.Render(hint) + "\n")
		}
		sb.WriteString("\n")
		sb.WriteString(keyValues("", footer(res, failOnWarn)...))
		_, err := io.WriteString(w, sb.String())
		return err
	}

	var current report.Subsystem
	for _, d := range res.Summary.Diagnostics {
		if d.Subsystem != current {
			if current != "" {
				sb.WriteString("\n")
			}
			current = d.Subsystem
			sb.WriteString(headingStyle.Render(title(current)) + "\n")
		}
		sb.WriteString("  " + marker(d.Severity) + " " + d.Message + "\n")
	}

	if res.Report != nil && len(res.Report.Monitors) > 0 {
		sb.WriteString("\n" + monitorTable(res.Report.Monitors) + "\n")
	}

	if len(res.Summary.Recommendations) > 0 {
		sb.WriteString("\n" + headingStyle.Render("Recommendations") + "\n")
		for _, r := range res.Summary.Recommendations {
			sb.WriteString("  " + accentStyle.Render("→") + " " + r + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(keyValues("", footer(res, failOnWarn)...))
	_, err := io.WriteString(w, sb.String())
	return err
}

func title(sub report.Subsystem) string {
	if t, ok := sectionTitles[sub]; ok {
		return t
	}
	return string(sub)
}

func monitorTable(mons []report.MonitorInfo) string {
	rows := make([][]string, 0, len(mons))
	for _, m := range mons {
		rows = append(rows, []string{m.Name, strconv.Itoa(m.Rank), string(m.Role), m.Address()})
	}
	return renderTable([]string{"NAME", "RANK", "ROLE", "ADDRESS"}, rows)
}

func footer(res *probe.Result, failOnWarn bool) []pair {
	pairs := []pair{}
	if res.Err == nil {
		pairs = append(pairs,
			kv("status", severityText(res.Summary.Status)+"  "+res.Summary.Headline),
			kv("findings", fmt.Sprintf("%d warning(s), %d error(s)", res.Summary.Warnings, res.Summary.Errors)),
		)
	}
	pairs = append(pairs,
		kv("run", res.RunID),
		kv("attempts", strconv.Itoa(res.Attempts)),
		kv("exit code", strconv.Itoa(res.ExitCode(failOnWarn))),
	)
	if !res.Finished.IsZero() {
		pairs = append(pairs, kv("duration", res.Finished.Sub(res.Started).Round(time.Millisecond).String()))
	}
	if res.ReportPath != "" {
		pairs = append(pairs, kv("report kept", res.ReportPath))
	}
	return pairs
}

// Document is the JSON form of a run.
type Document struct {
	RunID           string                `json:"run_id"`
	Status          string                `json:"status"`
	Headline        string                `json:"headline,omitempty"`
	ExitCode        int                   `json:"exit_code"`
	Attempts        int                   `json:"attempts"`
	DurationMillis  int64                 `json:"duration_ms"`
	Error           string                `json:"error,omitempty"`
	Hint            string                `json:"hint,omitempty"`
	ReportPath      string                `json:"report_path,omitempty"`
	Report          *report.ClusterReport `json:"report,omitempty"`
	Diagnostics     []diagnose.Diagnostic `json:"diagnostics"`
	Recommendations []string              `json:"recommendations"`
}

// NewDocument flattens res for JSON output.
func NewDocument(res *probe.Result, failOnWarn bool) Document {
	doc := Document{
		RunID:           res.RunID,
		Status:          res.Summary.Status.String(),
		Headline:        res.Summary.Headline,
		ExitCode:        res.ExitCode(failOnWarn),
		Attempts:        res.Attempts,
		ReportPath:      res.ReportPath,
		Report:          res.Report,
		Diagnostics:     res.Summary.Diagnostics,
		Recommendations: res.Summary.Recommendations,
	}
	if !res.Finished.IsZero() {
		doc.DurationMillis = res.Finished.Sub(res.Started).Milliseconds()
	}
	if res.Err != nil {
		doc.Status = "FAILED"
		doc.Error = res.Err.Error()
		doc.Hint = probe.Hint(res.Err)
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []diagnose.Diagnostic{}
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []string{}
	}
	return doc
}

// JSON writes res as one indented JSON document.
func JSON(w io.Writer, res *probe.Result, failOnWarn bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(res, failOnWarn))
}

// Write dispatches on format ("text" or "json").
func Write(w io.Writer, format string, res *probe.Result, failOnWarn bool) error {
	switch format {
	case "json":
		return JSON(w, res, failOnWarn)
	case "text", "":
		return Text(w, res, failOnWarn)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
