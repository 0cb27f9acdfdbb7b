package diagnose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ceph-check/internal/report"
)

// Section turns one part of a report into diagnostics.
type Section func(r *report.ClusterReport) []Diagnostic

// cleanState is the only placement group state that needs no attention.
const cleanState = "active+clean"

// ---------- SECTIONS ----------

// OverallSection reports the cluster verdict.
func OverallSection(r *report.ClusterReport) []Diagnostic {
	d := Diagnostic{
		Subsystem: report.SubsystemOverall,
		Severity:  FromStatus(r.OverallStatus),
		Message:   "cluster health " + r.RawStatus,
		Attrs:     map[string]string{"status": r.RawStatus},
	}
	if r.FSID != "" {
		d.Attrs["fsid"] = r.FSID
	}
	if r.Version != "" {
		d.Attrs["version"] = r.Version
	}
	if r.OverallStatus != report.StatusOK {
		d.Recommendation = "Review the health summary below and `ceph health detail`"
	}
	return []Diagnostic{d}
}

// SummarySection emits one diagnostic per health summary line.
func SummarySection(r *report.ClusterReport) []Diagnostic {
	var out []Diagnostic
	if r.OverallStatus != report.StatusOK {
		sev := FromStatus(r.OverallStatus)
		for _, line := range r.SummaryLines {
			out = append(out, Diagnostic{
				Subsystem: report.SubsystemHealth,
				Severity:  sev,
				Message:   line,
			})
		}
	}
	return append(out, skipped(r, report.SubsystemHealth)...)
}

// MonitorSection lists every monitor, then the monmap epoch, duplicate
// ranks and skipped entries.
func MonitorSection(r *report.ClusterReport) []Diagnostic {
	var out []Diagnostic

	for _, m := range r.Monitors {
		out = append(out, Diagnostic{
			Subsystem: report.SubsystemMonitors,
			Severity:  SeverityInfo,
			Message:   fmt.Sprintf("%s: rank %d, %s, %s", m.Name, m.Rank, m.Role, m.Address()),
			Attrs: map[string]string{
				"name": m.Name,
				"rank": strconv.Itoa(m.Rank),
				"role": string(m.Role),
				"host": m.Host,
				"port": strconv.Itoa(m.Port),
			},
		})
	}

	epoch := Diagnostic{
		Subsystem: report.SubsystemMonitors,
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("monmap epoch %d: %d monitors", r.MonmapEpoch, len(r.Monitors)),
		Attrs: map[string]string{
			"epoch":    strconv.Itoa(r.MonmapEpoch),
			"monitors": strconv.Itoa(len(r.Monitors)),
		},
	}
	if len(r.Monitors) == 0 {
		epoch.Message = fmt.Sprintf("monmap epoch %d: no data, no usable monitor entries", r.MonmapEpoch)
	}
	out = append(out, epoch)

	ranks := make([]int, 0, len(r.DuplicateRanks))
	for rank := range r.DuplicateRanks {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	for _, rank := range ranks {
		names := r.DuplicateRanks[rank]
		out = append(out, Diagnostic{
			Subsystem: report.SubsystemMonitors,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("rank %d claimed by %d monitors: %s", rank, len(names), strings.Join(names, ", ")),
			Attrs: map[string]string{
				"rank":     strconv.Itoa(rank),
				"monitors": strings.Join(names, ","),
			},
			Recommendation: "Compare `ceph mon dump` with the monmap; ranks must be unique",
		})
	}

	return append(out, skipped(r, report.SubsystemMonitors)...)
}

// DaemonSection summarises OSD state and flags every OSD that is down or out.
func DaemonSection(r *report.ClusterReport) []Diagnostic {
	if len(r.Daemons) == 0 {
		return append([]Diagnostic{noData(report.SubsystemDaemons, "osds")}, skipped(r, report.SubsystemDaemons)...)
	}

	up, in := 0, 0
	for _, d := range r.Daemons {
		if d.Up {
			up++
		}
		if d.In {
			in++
		}
	}
	out := []Diagnostic{{
		Subsystem: report.SubsystemDaemons,
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("%d osds: %d up, %d in", len(r.Daemons), up, in),
		Attrs: map[string]string{
			"total": strconv.Itoa(len(r.Daemons)),
			"up":    strconv.Itoa(up),
			"in":    strconv.Itoa(in),
		},
	}}

	for _, d := range r.Daemons {
		var state []string
		if !d.Up {
			state = append(state, "down")
		}
		if !d.In {
			state = append(state, "out")
		}
		if len(state) == 0 {
			continue
		}
		out = append(out, Diagnostic{
			Subsystem:      report.SubsystemDaemons,
			Severity:       SeverityWarning,
			Message:        fmt.Sprintf("osd.%d is %s", d.ID, strings.Join(state, " and ")),
			Attrs:          map[string]string{"id": strconv.Itoa(d.ID), "state": strings.Join(state, "+")},
			Recommendation: "Check the OSD service and its host, then `ceph osd tree`",
		})
	}

	return append(out, skipped(r, report.SubsystemDaemons)...)
}

// PoolSection lists pools and flags replication settings that can never be
// satisfied.
func PoolSection(r *report.ClusterReport) []Diagnostic {
	if len(r.Pools) == 0 {
		return append([]Diagnostic{noData(report.SubsystemPools, "pools")}, skipped(r, report.SubsystemPools)...)
	}

	var out []Diagnostic
	for _, p := range r.Pools {
		attrs := map[string]string{
			"id":     strconv.Itoa(p.ID),
			"name":   p.Name,
			"pg_num": strconv.Itoa(p.PGNum),
		}
		replication := "replication unknown"
		if p.HasReplication {
			attrs["size"] = strconv.Itoa(p.Size)
			attrs["min_size"] = strconv.Itoa(p.MinSize)
			replication = fmt.Sprintf("size %d, min_size %d", p.Size, p.MinSize)
		}
		out = append(out, Diagnostic{
			Subsystem: report.SubsystemPools,
			Severity:  SeverityInfo,
			Message:   fmt.Sprintf("pool %s (id %d): %s, pg_num %d", p.Name, p.ID, replication, p.PGNum),
			Attrs:     attrs,
		})
		if p.HasReplication && p.MinSize > p.Size {
			out = append(out, Diagnostic{
				Subsystem:      report.SubsystemPools,
				Severity:       SeverityWarning,
				Message:        fmt.Sprintf("pool %s: min_size %d exceeds size %d, I/O will block", p.Name, p.MinSize, p.Size),
				Attrs:          attrs,
				Recommendation: "Lower min_size or raise size with `ceph osd pool set`",
			})
		}
	}

	return append(out, skipped(r, report.SubsystemPools)...)
}

// PlacementGroupSection reports placement group totals per state.
func PlacementGroupSection(r *report.ClusterReport) []Diagnostic {
	pgs := r.PlacementGroups
	if !pgs.Present {
		return append([]Diagnostic{noData(report.SubsystemPlacementGroups, "placement groups")},
			skipped(r, report.SubsystemPlacementGroups)...)
	}

	states := make([]string, 0, len(pgs.ByState))
	for state := range pgs.ByState {
		states = append(states, state)
	}
	sort.Strings(states)

	parts := make([]string, 0, len(states))
	attrs := map[string]string{"total": strconv.Itoa(pgs.Total)}
	for _, state := range states {
		parts = append(parts, fmt.Sprintf("%d %s", pgs.ByState[state], state))
		attrs[state] = strconv.Itoa(pgs.ByState[state])
	}

	msg := fmt.Sprintf("%d pgs", pgs.Total)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, ", ")
	}
	out := []Diagnostic{{
		Subsystem: report.SubsystemPlacementGroups,
		Severity:  SeverityInfo,
		Message:   msg,
		Attrs:     attrs,
	}}

	for _, state := range states {
		if state == cleanState {
			continue
		}
		out = append(out, Diagnostic{
			Subsystem:      report.SubsystemPlacementGroups,
			Severity:       SeverityWarning,
			Message:        fmt.Sprintf("%d pgs %s", pgs.ByState[state], state),
			Attrs:          map[string]string{"state": state, "count": strconv.Itoa(pgs.ByState[state])},
			Recommendation: "Inspect stuck placement groups with `ceph pg dump_stuck`",
		})
	}
	return append(out, skipped(r, report.SubsystemPlacementGroups)...)
}

func noData(sub report.Subsystem, what string) Diagnostic {
	return Diagnostic{
		Subsystem: sub,
		Severity:  SeverityInfo,
		Message:   "no data: report has no " + what,
	}
}

func skipped(r *report.ClusterReport, sub report.Subsystem) []Diagnostic {
	var out []Diagnostic
	for _, s := range r.SkippedIn(sub) {
		attrs := map[string]string{"index": strconv.Itoa(s.Index)}
		if s.Name != "" {
			attrs["name"] = s.Name
		}
		out = append(out, Diagnostic{
			Subsystem: sub,
			Severity:  SeverityWarning,
			Message:   "skipped entry: " + s.Reason(),
			Attrs:     attrs,
		})
	}
	return out
}
