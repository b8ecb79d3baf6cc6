package trie

import (
	"testing"

	"github.com/dreamware/apiproxy/internal/routespec"
)

func mustRoutes(t *testing.T, pairs ...[2]string) []routespec.ServerRoute {
	t.Helper()
	routes := make([]routespec.ServerRoute, 0, len(pairs))
	for _, p := range pairs {
		rt, err := routespec.ParseLine(p[0], p[1])
		if err != nil {
			t.Fatalf("ParseLine(%q, %q): %v", p[0], p[1], err)
		}
		routes = append(routes, rt)
	}
	return routes
}

func TestBuildSingleServer(t *testing.T) {
	routes := mustRoutes(t, [2]string{"*", "http://only:8001/"})
	tr, err := Build(routes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range []uint32{0, 1, 0xFFFFFFFF, 0x80000000} {
		if got := tr.MatchShardingKey(k); got != "http://only:8001/" {
			t.Errorf("MatchShardingKey(%d) = %q, want %q", k, got, "http://only:8001/")
		}
	}
}

func TestBuildTwoServers(t *testing.T) {
	routes := mustRoutes(t,
		[2]string{"0.*", "http://a:8001/"},
		[2]string{"1.*", "http://b:8001/"},
	)
	tr, err := Build(routes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := tr.MatchShardingKey(0); got != "http://a:8001/" {
		t.Errorf("key 0 -> %q, want a", got)
	}
	if got := tr.MatchShardingKey(0x80000000); got != "http://b:8001/" {
		t.Errorf("key with bit 31 set -> %q, want b", got)
	}
}

func TestBuildMissingRouteRejected(t *testing.T) {
	routes := mustRoutes(t, [2]string{"0.*", "http://a:8001/"})
	if _, err := Build(routes); err == nil {
		t.Fatal("expected missing-route error for 0.* alone")
	}
}

func TestBuildDuplicateRouteRejected(t *testing.T) {
	routes := mustRoutes(t,
		[2]string{"0.*", "http://a:8001/"},
		[2]string{"1.*", "http://b:8001/"},
		[2]string{"0.0.*", "http://c:8001/"},
		[2]string{"0.1.*", "http://d:8001/"},
	)
	if _, err := Build(routes); err == nil {
		t.Fatal("expected duplicated-route error for 0.* + 0.0.* + 0.1.*")
	}
}

func TestBuildDuplicateRouteRejectedReverseOrder(t *testing.T) {
	routes := mustRoutes(t,
		[2]string{"0.0.*", "http://c:8001/"},
		[2]string{"0.1.*", "http://d:8001/"},
		[2]string{"1.*", "http://b:8001/"},
		[2]string{"0.*", "http://a:8001/"},
	)
	if _, err := Build(routes); err == nil {
		t.Fatal("expected duplicated-route error when shorter route follows longer ones")
	}
}

// TestKeySpaceCoverage verifies invariant 2 for a representative
// sample of the 32-bit key space (exhaustive would be slow but the
// recursive descent is uniform in depth, so a stride sample suffices).
func TestKeySpaceCoverage(t *testing.T) {
	routes := mustRoutes(t,
		[2]string{"0.0.*", "http://a:8001/"},
		[2]string{"0.1.*", "http://b:8001/"},
		[2]string{"1.*", "http://c:8001/"},
	)
	tr, err := Build(routes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for k := uint32(0); ; k += 104729 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("MatchShardingKey(%d) panicked: %v", k, r)
				}
			}()
			_ = tr.MatchShardingKey(k)
		}()
		if k > 0xFFFFFFFF-104729 {
			break
		}
	}
}

func TestLeaves(t *testing.T) {
	routes := mustRoutes(t,
		[2]string{"0.*", "http://a:8001/"},
		[2]string{"1.*", "http://b:8001/"},
	)
	tr, err := Build(routes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	leaves := tr.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("Leaves() = %v, want 2 entries", leaves)
	}
}
