package render

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"ceph-check/internal/diagnose"
	"ceph-check/internal/fetch"
	"ceph-check/internal/probe"
	"ceph-check/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyResult(t *testing.T) *probe.Result {
	t.Helper()
	rep, err := report.Parse([]byte(`{
	  "health": {"overall_status": "HEALTH_WARN", "summary": [{"summary": "1 osds down"}]},
	  "monmap": {"epoch": 3, "mons": [
	    {"name": "a", "rank": 0, "addr": "10.0.0.1:6789/0"},
	    {"name": "b", "rank": 1, "addr": "10.0.0.2:6789/0"}
	  ]},
	  "osdmap": {"osds": [{"osd": 0, "up": 0, "in": 1}]}
	}`))
	require.NoError(t, err)

	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	return &probe.Result{
		RunID:    "run-1",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Attempts: 2,
		Report:   rep,
		Summary:  diagnose.Summarize(diagnose.Classify(rep)),
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, healthyResult(t), true))
	out := buf.String()

	for _, want := range []string{
		"Overall", "cluster health HEALTH_WARN",
		"Health summary", "1 osds down",
		"Monitors", "a: rank 0, Leader, 10.0.0.1:6789", "monmap epoch 3: 2 monitors",
		"OSDs", "osd.0 is down",
		"Pools", "no data: report has no pools",
		"Placement groups",
		"ADDRESS", "10.0.0.2:6789", "Peon",
		"Recommendations", "ceph osd tree",
		"run-1", "1.5s",
	} {
		assert.Contains(t, out, want)
	}

	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Overall")), bytes.Index(buf.Bytes(), []byte("Monitors")))
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Monitors")), bytes.Index(buf.Bytes(), []byte("OSDs")))
}

func TestText_Failure(t *testing.T) {
	res := &probe.Result{
		RunID:      "run-2",
		Attempts:   4,
		ReportPath: "/tmp/ceph-report-1",
		Err:        &fetch.Error{Kind: fetch.ErrUnreachable, Attempts: 4},
	}

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, res, false))
	out := buf.String()

	assert.Contains(t, out, "control plane unreachable")
	assert.Contains(t, out, "not this host")
	assert.Contains(t, out, "/tmp/ceph-report-1")
	assert.Contains(t, out, "exit code")
	assert.NotContains(t, out, "Monitors")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, healthyResult(t), false))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "ERROR", doc["status"])
	assert.EqualValues(t, 0, doc["exit_code"])
	assert.EqualValues(t, 1500, doc["duration_ms"])

	diags, ok := doc["diagnostics"].([]any)
	require.True(t, ok)
	first := diags[0].(map[string]any)
	assert.Equal(t, "overall", first["subsystem"])
	assert.Equal(t, "ERROR", first["severity"])

	rep := doc["report"].(map[string]any)
	assert.Equal(t, "ERROR", rep["overall_status"])
	assert.Len(t, rep["monitors"], 2)
}

func TestJSON_Failure(t *testing.T) {
	res := &probe.Result{RunID: "run-3", Err: report.ErrMalformed}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", res, false))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FAILED", doc.Status)
	assert.Equal(t, probe.ExitMalformed, doc.ExitCode)
	assert.Contains(t, doc.Hint, "version compatibility")
	assert.NotNil(t, doc.Diagnostics)
	assert.Nil(t, doc.Report)
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", &probe.Result{}, false))
}

func TestSkippedEntryJSON(t *testing.T) {
	rep, err := report.Parse([]byte(`{"health":{"overall_status":"HEALTH_OK"},"monmap":{"epoch":1,"mons":[{"name":"b","rank":1}]}}`))
	require.NoError(t, err)

	data, err := json.Marshal(rep.Skipped)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":`)
	assert.Contains(t, string(data), `"subsystem":"monitors"`)
}
