package serverscfg

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/apiproxy/internal/intid"
	"github.com/dreamware/apiproxy/internal/routespec"
	"github.com/dreamware/apiproxy/internal/trie"
)

// ServersConfig is one immutable generation of the routing plane.
type ServersConfig struct {
	tr             *trie.Trie
	minIDs         map[routespec.ServerURL]int64
	firstServerURL routespec.ServerURL
	successor      map[routespec.ServerURL]*routespec.ServerURL
	version        string
}

// ParseConfigFile splits raw config-file bytes into route lines,
// skipping blank lines and collecting a per-line error for any line
// that fails to parse as "<route> <url>" rather than aborting the
// whole reload.
func ParseConfigFile(raw []byte) ([]routespec.ServerRoute, []error) {
	var routes []routespec.ServerRoute
	var errs []error

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			errs = append(errs, fmt.Errorf("serverscfg: line %d: expected route and url, got %d token(s)", lineNo, len(fields)))
			continue
		}
		rt, err := routespec.ParseLine(fields[0], fields[1])
		if err != nil {
			errs = append(errs, fmt.Errorf("serverscfg: line %d: %w", lineNo, err))
			continue
		}
		routes = append(routes, rt)
	}
	return routes, errs
}

// New builds a ServersConfig from already-parsed routes and the raw
// file bytes (used only to derive the version token).
func New(routes []routespec.ServerRoute, raw []byte) (*ServersConfig, error) {
	tr, err := trie.Build(routes)
	if err != nil {
		return nil, err
	}

	minIDs, first := computeMinIDs(tr)
	successor := computeSuccessor(tr, first)

	return &ServersConfig{
		tr:             tr,
		minIDs:         minIDs,
		firstServerURL: first,
		successor:      successor,
		version:        fmt.Sprintf("%x", md5.Sum(raw)),
	}, nil
}

// Load parses raw config-file bytes end to end. lineErrs are non-fatal
// (offending lines are simply skipped); err is fatal to the reload
// attempt (trie coverage/duplication failure, or zero usable routes).
func Load(raw []byte) (cfg *ServersConfig, lineErrs []error, err error) {
	routes, lineErrs := ParseConfigFile(raw)
	if len(routes) == 0 {
		return nil, lineErrs, fmt.Errorf("serverscfg: no valid routes in config")
	}
	cfg, err = New(routes, raw)
	return cfg, lineErrs, err
}

// computeMinIDs scans i upward from MinI64, recording for each server
// the first id whose single-id sharding key lands on it, and noting
// the very first server reached as firstServerURL. The scan is
// guaranteed to terminate because the trie covers the whole key space
// and every distinct leaf URL is eventually hit as i increases.
func computeMinIDs(tr *trie.Trie) (map[routespec.ServerURL]int64, routespec.ServerURL) {
	want := len(tr.Leaves())
	minIDs := make(map[routespec.ServerURL]int64, want)

	var first routespec.ServerURL
	firstSet := false

	i := intid.MinI64
	for {
		u := tr.MatchShardingKey(intid.ShardKey(i, nil))
		if !firstSet {
			first = u
			firstSet = true
		}
		if _, ok := minIDs[u]; !ok {
			minIDs[u] = i
		}
		if len(minIDs) == want {
			break
		}
		if i == intid.MaxI64 {
			break
		}
		i++
	}
	return minIDs, first
}

// computeSuccessor builds the total server order: first, then the
// remaining server URLs sorted ascending, terminated by a nil entry.
func computeSuccessor(tr *trie.Trie, first routespec.ServerURL) map[routespec.ServerURL]*routespec.ServerURL {
	all := tr.Leaves()
	rest := make([]routespec.ServerURL, 0, len(all))
	for _, u := range all {
		if u != first {
			rest = append(rest, u)
		}
	}
	slices.Sort(rest)

	successor := make(map[routespec.ServerURL]*routespec.ServerURL, len(all))
	prev := first
	for _, u := range rest {
		uu := u
		successor[prev] = &uu
		prev = uu
	}
	successor[prev] = nil
	return successor
}

// MatchShardingKey resolves a 32-bit sharding key to its owning server.
func (c *ServersConfig) MatchShardingKey(k uint32) routespec.ServerURL {
	return c.tr.MatchShardingKey(k)
}

// MinID returns the smallest entity id whose single-id sharding key
// lands on u, and whether u is a known server.
func (c *ServersConfig) MinID(u routespec.ServerURL) (int64, bool) {
	id, ok := c.minIDs[u]
	return id, ok
}

// FirstServerURL returns the server responsible for shardKey(MinI64).
func (c *ServersConfig) FirstServerURL() routespec.ServerURL {
	return c.firstServerURL
}

// Successor returns the next server in the fleet-wide enumerate order
// after u, and false if u is the last server (or unknown).
func (c *ServersConfig) Successor(u routespec.ServerURL) (routespec.ServerURL, bool) {
	next, ok := c.successor[u]
	if !ok || next == nil {
		return "", false
	}
	return *next, true
}

// Version is the opaque hex-MD5 token derived from the raw config
// bytes this generation was built from.
func (c *ServersConfig) Version() string {
	return c.version
}
