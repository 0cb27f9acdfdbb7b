package report

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the overall cluster verdict.
//
// Reports only distinguish HEALTH_OK from everything else, so Parse never
// produces StatusWarning; it exists for per-subsystem findings.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusOK, StatusWarning, StatusError} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// HealthOK is the raw status string of a healthy cluster.
const HealthOK = "HEALTH_OK"

// Subsystem tags where a finding comes from.
type Subsystem string

const (
	SubsystemOverall         Subsystem = "overall"
	SubsystemHealth          Subsystem = "health"
	SubsystemMonitors        Subsystem = "monitors"
	SubsystemDaemons         Subsystem = "osds"
	SubsystemPools           Subsystem = "pools"
	SubsystemPlacementGroups Subsystem = "pgs"
)

type Role string

const (
	RoleLeader Role = "Leader"
	RolePeon   Role = "Peon"
)

// RoleForRank returns Leader for rank 0 and Peon otherwise.
func RoleForRank(rank int) Role {
	if rank == 0 {
		return RoleLeader
	}
	return RolePeon
}

type MonitorInfo struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Role Role   `json:"role"`
}

// Address is host:port, with IPv6 hosts bracketed.
func (m MonitorInfo) Address() string {
	host := m.Host
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			host = "[" + host + "]"
			break
		}
	}
	return host + ":" + strconv.Itoa(m.Port)
}

// DaemonInfo is one OSD.
type DaemonInfo struct {
	ID int  `json:"id"`
	Up bool `json:"up"`
	In bool `json:"in"`
}

// PoolInfo describes one pool. HasReplication is set only when the report
// carried both size and min_size.
type PoolInfo struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Size           int    `json:"size"`
	MinSize        int    `json:"min_size"`
	PGNum          int    `json:"pg_num"`
	HasReplication bool   `json:"has_replication"`
}

// PGStats aggregates placement group states. Present is false when the
// report had no usable pgmap.
type PGStats struct {
	Present bool           `json:"present"`
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state,omitempty"`
}

// SkippedEntry records a fleet member that could not be parsed.
type SkippedEntry struct {
	Subsystem Subsystem `json:"subsystem"`
	Index     int       `json:"index"`
	Name      string    `json:"name,omitempty"`
	Err       error     `json:"-"`
}

func (s SkippedEntry) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

func (s SkippedEntry) MarshalJSON() ([]byte, error) {
	type entry SkippedEntry
	return json.Marshal(struct {
		entry
		Reason string `json:"reason"`
	}{entry(s), s.Reason()})
}

// ClusterReport is one parsed snapshot. It is built once per run and not
// modified afterwards.
type ClusterReport struct {
	FSID          string `json:"fsid,omitempty"`
	Version       string `json:"version,omitempty"`
	OverallStatus Status `json:"overall_status"`
	RawStatus     string `json:"raw_status"`
	// SummaryLines is empty iff OverallStatus is StatusOK.
	SummaryLines []string `json:"summary_lines,omitempty"`

	MonmapEpoch int           `json:"monmap_epoch"`
	Monitors    []MonitorInfo `json:"monitors"`
	// DuplicateRanks maps a rank claimed by more than one monitor to the
	// names claiming it.
	DuplicateRanks map[int][]string `json:"duplicate_ranks,omitempty"`

	Daemons         []DaemonInfo `json:"osds"`
	Pools           []PoolInfo   `json:"pools"`
	PlacementGroups PGStats      `json:"pgs"`

	Skipped []SkippedEntry `json:"skipped,omitempty"`
}

// Monitor looks a monitor up by name.
func (r *ClusterReport) Monitor(name string) (MonitorInfo, bool) {
	for _, m := range r.Monitors {
		if m.Name == name {
			return m, true
		}
	}
	return MonitorInfo{}, false
}

// Daemon looks an OSD up by id.
func (r *ClusterReport) Daemon(id int) (DaemonInfo, bool) {
	for _, d := range r.Daemons {
		if d.ID == id {
			return d, true
		}
	}
	return DaemonInfo{}, false
}

// SkippedIn returns the skipped entries of one subsystem, in order.
func (r *ClusterReport) SkippedIn(sub Subsystem) []SkippedEntry {
	var out []SkippedEntry
	for _, s := range r.Skipped {
		if s.Subsystem == sub {
			out = append(out, s)
		}
	}
	return out
}
