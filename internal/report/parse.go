package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMalformed means the control plane answered but the report lacks
	// required structure. It points at a control-plane bug or version skew,
	// never at reachability.
	ErrMalformed = errors.New("malformed report")

	// ErrPartialEntry marks one fleet member that could not be parsed. It
	// is recorded on the report and never returned by Parse.
	ErrPartialEntry = errors.New("unparsable entry")
)

func malformed(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, a...))
}

func partial(sub Subsystem, index int, format string, a ...any) error {
	return fmt.Errorf("%w: %s[%d]: %s", ErrPartialEntry, sub, index, fmt.Sprintf(format, a...))
}

// Parse decodes a `ceph report` document. It fails with ErrMalformed when
// health.overall_status, monmap.epoch or monmap.mons are missing or of the
// wrong type. Monitor, OSD, pool and placement group entries that cannot
// be read are skipped and listed in ClusterReport.Skipped. Unknown keys are
// ignored.
func Parse(raw []byte) (*ClusterReport, error) {
	root, ok := decodeObject(raw)
	if !ok {
		return nil, malformed("report is not a JSON object")
	}

	health, ok := root.object("health")
	if !ok {
		return nil, malformed("health section missing")
	}
	status, ok := health.string("overall_status")
	if !ok {
		return nil, malformed("health.overall_status missing or not a string")
	}

	monmap, ok := root.object("monmap")
	if !ok {
		return nil, malformed("monmap section missing")
	}
	epoch, ok := monmap.int("epoch")
	if !ok {
		return nil, malformed("monmap.epoch missing or not an integer")
	}
	mons, ok := monmap.array("mons")
	if !ok {
		return nil, malformed("monmap.mons missing or not a list")
	}

	r := &ClusterReport{
		RawStatus:   status,
		MonmapEpoch: epoch,
		Monitors:    []MonitorInfo{},
		Daemons:     []DaemonInfo{},
		Pools:       []PoolInfo{},
	}
	r.FSID, _ = root.string("fsid")
	r.Version, _ = root.string("version")

	if status == HealthOK {
		r.OverallStatus = StatusOK
	} else {
		r.OverallStatus = StatusError
		r.SummaryLines = summaryLines(r, health)
	}

	parseMonitors(r, mons)

	if osdmap, ok := root.object("osdmap"); ok {
		parseDaemons(r, osdmap)
		parsePools(r, osdmap)
	}
	if pgmap, ok := root.object("pgmap"); ok {
		r.PlacementGroups = parsePGs(r, pgmap)
	}

	return r, nil
}

// summaryLines collects health.summary[].summary, falling back to
// health.checks.<NAME>.summary.message on newer releases. A non-OK report
// always yields at least one line.
func summaryLines(r *ClusterReport, health object) []string {
	var lines []string

	if entries, ok := health.array("summary"); ok {
		for i, raw := range entries {
			entry, ok := decodeObject(raw)
			if !ok {
				r.skip(SubsystemHealth, i, "", partial(SubsystemHealth, i, "summary entry is not an object"))
				continue
			}
			line, ok := entry.string("summary")
			if !ok {
				r.skip(SubsystemHealth, i, "", partial(SubsystemHealth, i, "summary entry has no summary text"))
				continue
			}
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		if checks, ok := health.object("checks"); ok {
			names := make([]string, 0, len(checks))
			for name := range checks {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				check, ok := decodeObject(checks[name])
				if !ok {
					continue
				}
				summary, ok := check.object("summary")
				if !ok {
					lines = append(lines, name)
					continue
				}
				msg, ok := summary.string("message")
				if !ok {
					msg = name
				}
				lines = append(lines, msg)
			}
		}
	}

	if len(lines) == 0 {
		lines = append(lines, "cluster reports "+r.RawStatus+" without a summary")
	}
	return lines
}

func parseMonitors(r *ClusterReport, mons []json.RawMessage) {
	seen := make(map[string]bool, len(mons))
	byRank := make(map[int][]string, len(mons))

	for i, raw := range mons {
		entry, ok := decodeObject(raw)
		if !ok {
			r.skip(SubsystemMonitors, i, "", partial(SubsystemMonitors, i, "entry is not an object"))
			continue
		}

		name, hasName := entry.string("name")
		if !hasName || name == "" {
			r.skip(SubsystemMonitors, i, "", partial(SubsystemMonitors, i, `missing "name"`))
			continue
		}
		rank, ok := entry.int("rank")
		if !ok {
			r.skip(SubsystemMonitors, i, name, partial(SubsystemMonitors, i, `%s: missing "rank"`, name))
			continue
		}
		if rank < 0 {
			r.skip(SubsystemMonitors, i, name, partial(SubsystemMonitors, i, "%s: negative rank %d", name, rank))
			continue
		}
		addr, ok := entry.string("addr")
		if !ok {
			r.skip(SubsystemMonitors, i, name, partial(SubsystemMonitors, i, `%s: missing "addr"`, name))
			continue
		}
		host, port, err := splitAddr(addr)
		if err != nil {
			r.skip(SubsystemMonitors, i, name, partial(SubsystemMonitors, i, "%s: %v", name, err))
			continue
		}
		if seen[name] {
			r.skip(SubsystemMonitors, i, name, partial(SubsystemMonitors, i, "%s: duplicate monitor name", name))
			continue
		}
		seen[name] = true

		r.Monitors = append(r.Monitors, MonitorInfo{
			Name: name,
			Rank: rank,
			Host: host,
			Port: port,
			Role: RoleForRank(rank),
		})
		byRank[rank] = append(byRank[rank], name)
	}

	for rank, names := range byRank {
		if len(names) < 2 {
			continue
		}
		if r.DuplicateRanks == nil {
			r.DuplicateRanks = make(map[int][]string)
		}
		r.DuplicateRanks[rank] = names
	}
}

// splitAddr splits "host:port/nonce". The host ends at the first ':' (or
// at the closing bracket of an IPv6 literal), the port at '/'.
func splitAddr(addr string) (string, int, error) {
	addr = strings.TrimSpace(addr)

	var host, rest string
	if strings.HasPrefix(addr, "[") {
		end := strings.IndexByte(addr, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("address %q: unterminated IPv6 host", addr)
		}
		host, rest = addr[1:end], addr[end+1:]
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("address %q: no port", addr)
		}
		rest = rest[1:]
	} else {
		var ok bool
		host, rest, ok = strings.Cut(addr, ":")
		if !ok {
			return "", 0, fmt.Errorf("address %q: no port", addr)
		}
	}
	if host == "" {
		return "", 0, fmt.Errorf("address %q: empty host", addr)
	}

	portStr, _, _ := strings.Cut(rest, "/")
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("address %q: invalid port %q", addr, portStr)
	}
	return host, port, nil
}

func parseDaemons(r *ClusterReport, osdmap object) {
	osds, ok := osdmap.array("osds")
	if !ok {
		return
	}
	seen := make(map[int]bool, len(osds))

	for i, raw := range osds {
		entry, ok := decodeObject(raw)
		if !ok {
			r.skip(SubsystemDaemons, i, "", partial(SubsystemDaemons, i, "entry is not an object"))
			continue
		}
		id, ok := entry.int("osd")
		if !ok {
			r.skip(SubsystemDaemons, i, "", partial(SubsystemDaemons, i, `missing "osd"`))
			continue
		}
		name := "osd." + strconv.Itoa(id)
		up, okUp := entry.flag("up")
		in, okIn := entry.flag("in")
		if !okUp || !okIn {
			r.skip(SubsystemDaemons, i, name, partial(SubsystemDaemons, i, "%s: missing up/in state", name))
			continue
		}
		if seen[id] {
			r.skip(SubsystemDaemons, i, name, partial(SubsystemDaemons, i, "%s: duplicate id", name))
			continue
		}
		seen[id] = true

		r.Daemons = append(r.Daemons, DaemonInfo{ID: id, Up: up, In: in})
	}
}

func parsePools(r *ClusterReport, osdmap object) {
	pools, ok := osdmap.array("pools")
	if !ok {
		return
	}

	for i, raw := range pools {
		entry, ok := decodeObject(raw)
		if !ok {
			r.skip(SubsystemPools, i, "", partial(SubsystemPools, i, "entry is not an object"))
			continue
		}
		id, okID := entry.int("pool")
		name, okName := entry.string("pool_name")
		if !okID || !okName {
			r.skip(SubsystemPools, i, name, partial(SubsystemPools, i, `missing "pool" or "pool_name"`))
			continue
		}
		p := PoolInfo{ID: id, Name: name}
		size, okSize := entry.int("size")
		minSize, okMin := entry.int("min_size")
		if okSize && okMin {
			p.Size, p.MinSize, p.HasReplication = size, minSize, true
		}
		p.PGNum, _ = entry.int("pg_num")
		r.Pools = append(r.Pools, p)
	}
}

// parsePGs accepts both the status layout (num_pgs, pgs_by_state with
// state_name/count) and the report layout (num_pg_by_state with
// state/num). Unusable state entries are skipped and recorded.
func parsePGs(r *ClusterReport, pgmap object) PGStats {
	stats := PGStats{}
	sum := 0

	collect := func(key, stateKey, countKey string) {
		entries, ok := pgmap.array(key)
		if !ok {
			return
		}
		stats.Present = true
		for i, raw := range entries {
			entry, ok := decodeObject(raw)
			if !ok {
				r.skip(SubsystemPlacementGroups, i, "", partial(SubsystemPlacementGroups, i, "%s entry is not an object", key))
				continue
			}
			state, okState := entry.string(stateKey)
			count, okCount := entry.int(countKey)
			if !okState || !okCount {
				r.skip(SubsystemPlacementGroups, i, state,
					partial(SubsystemPlacementGroups, i, "%s entry missing %q or %q", key, stateKey, countKey))
				continue
			}
			if stats.ByState == nil {
				stats.ByState = make(map[string]int)
			}
			stats.ByState[state] += count
			sum += count
		}
	}
	collect("pgs_by_state", "state_name", "count")
	if !stats.Present {
		collect("num_pg_by_state", "state", "num")
	}

	if total, ok := pgmap.int("num_pgs"); ok {
		stats.Present = true
		stats.Total = total
	} else {
		stats.Total = sum
	}
	return stats
}

func (r *ClusterReport) skip(sub Subsystem, index int, name string, err error) {
	r.Skipped = append(r.Skipped, SkippedEntry{
		Subsystem: sub,
		Index:     index,
		Name:      name,
		Err:       err,
	})
}

// object is one level of the report's key tree.
type object map[string]json.RawMessage

var jsonNull = []byte("null")

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

func decodeObject(raw json.RawMessage) (object, bool) {
	if !present(raw) {
		return nil, false
	}
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false
	}
	return o, true
}

func (o object) object(key string) (object, bool) {
	return decodeObject(o[key])
}

func (o object) string(key string) (string, bool) {
	raw := o[key]
	if !present(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (o object) int(key string) (int, bool) {
	raw := o[key]
	if !present(raw) {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func (o object) array(key string) ([]json.RawMessage, bool) {
	raw := o[key]
	if !present(raw) {
		return nil, false
	}
	var a []json.RawMessage
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return a, true
}

// flag reads a boolean written either as true/false or as 1/0.
func (o object) flag(key string) (bool, bool) {
	raw := o[key]
	if !present(raw) {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, true
	}
	return false, false
}
