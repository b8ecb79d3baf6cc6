package serverscfg

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/apiproxy/internal/intid"
)

const twoServerConfig = "0.* http://a:8001/\n1.* http://b:8001/\n"

func TestParseConfigFileSkipsBlankAndBadLines(t *testing.T) {
	raw := []byte("\n  \n0.* http://a:8001/\nbogus-line\n1.* http://b:8001/\n0.0.* too many tokens here\n")
	routes, errs := ParseConfigFile(raw)
	require.Len(t, routes, 2)
	require.Len(t, errs, 2)
}

func TestLoadTwoServers(t *testing.T) {
	cfg, lineErrs, err := Load([]byte(twoServerConfig))
	require.NoError(t, err)
	require.Empty(t, lineErrs)

	got := cfg.MatchShardingKey(0x80000000)
	assert.Equal(t, "http://b:8001/", string(got))

	got = cfg.MatchShardingKey(0)
	assert.Equal(t, "http://a:8001/", string(got))

	wantVersion := fmt.Sprintf("%x", md5.Sum([]byte(twoServerConfig)))
	assert.Equal(t, wantVersion, cfg.Version())
}

func TestLoadRejectsIncompleteCoverage(t *testing.T) {
	_, _, err := Load([]byte("0.* http://a:8001/\n"))
	assert.Error(t, err)
}

func TestLoadRejectsNoRoutes(t *testing.T) {
	_, _, err := Load([]byte("\n\n"))
	assert.Error(t, err)
}

// TestSuccessorChain verifies invariant 4: successor forms a single
// simple path starting at firstServerURL and ending with no entry.
func TestSuccessorChain(t *testing.T) {
	raw := []byte("0.0.* http://a:8001/\n0.1.* http://b:8001/\n1.* http://c:8001/\n")
	cfg, _, err := Load(raw)
	require.NoError(t, err)

	seen := map[string]bool{}
	cur := cfg.FirstServerURL()
	seen[string(cur)] = true
	for {
		next, ok := cfg.Successor(cur)
		if !ok {
			break
		}
		if seen[string(next)] {
			t.Fatalf("successor chain revisits %q", next)
		}
		seen[string(next)] = true
		cur = next
	}
	assert.Len(t, seen, len(cfg.tr.Leaves()))
}

// TestMinIDsCorrectness verifies invariant 5 for a small fleet.
func TestMinIDsCorrectness(t *testing.T) {
	raw := []byte(twoServerConfig)
	cfg, _, err := Load(raw)
	require.NoError(t, err)

	for _, u := range cfg.tr.Leaves() {
		minID, ok := cfg.MinID(u)
		require.True(t, ok)
		assert.Equal(t, u, cfg.MatchShardingKey(intid.ShardKey(minID, nil)))
	}
}
