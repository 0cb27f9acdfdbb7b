package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/usr/bin/ceph", cfg.Fetch.Command)
	assert.Equal(t, []string{"report"}, cfg.Fetch.Args)
	assert.Equal(t, []time.Duration{300 * time.Second, 200 * time.Second, 100 * time.Second, 50 * time.Second}, cfg.Fetch.Schedule)
	assert.Equal(t, "/etc/ceph/ceph.conf", cfg.Precheck.ConfPath)
	assert.Equal(t, []string{"ceph"}, cfg.Precheck.RequiredTools)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.False(t, cfg.Output.FailOnWarn)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
fetch:
  schedule: [30s, 20s, 10s]
  keep_report: true
precheck:
  conf: /srv/ceph/prod.conf
  cluster: prod
log:
  level: debug
output:
  format: json
  fail_on_warn: true
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{30 * time.Second, 20 * time.Second, 10 * time.Second}, cfg.Fetch.Schedule)
	assert.True(t, cfg.Fetch.KeepReport)
	assert.Equal(t, "/usr/bin/ceph", cfg.Fetch.Command, "unset fields keep their defaults")
	assert.Equal(t, "/srv/ceph/prod.conf", cfg.Precheck.ConfPath)
	assert.Equal(t, "prod", cfg.Precheck.Cluster)
	assert.Equal(t, "admin", cfg.Precheck.Client)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Output.FailOnWarn)
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	_, err = Load(missing, false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":          "fetch: [",
		"empty schedule":    "fetch:\n  schedule: []\n",
		"negative entry":    "fetch:\n  schedule: [10s, -1s]\n",
		"bad duration":      "fetch:\n  schedule: [soon]\n",
		"empty command":     "fetch:\n  command: \"\"\n",
		"unknown format":    "output:\n  format: xml\n",
		"unknown log level": "log:\n  level: loud\n",
		"zero janitor":      "serve:\n  janitor_interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), false)
			assert.Error(t, err)
		})
	}
}

func TestFetchConfig(t *testing.T) {
	cfg := Default()
	cfg.Fetch.Schedule = []time.Duration{5 * time.Second, time.Second}
	cfg.Fetch.ReportDir = "/var/tmp"

	fc, err := cfg.FetchConfig("--conf", "/etc/ceph/ceph.conf")
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/ceph", fc.Command.Path)
	assert.Equal(t, []string{"report", "--conf", "/etc/ceph/ceph.conf"}, fc.Command.Args)
	assert.Equal(t, []string{"report"}, cfg.Fetch.Args, "configured args are not modified")
	assert.Equal(t, 2, fc.Schedule.Len())
	assert.Equal(t, 6*time.Second, fc.Schedule.Total())
	assert.Equal(t, "/var/tmp", fc.Dir)
}
