package trie

import (
	"fmt"

	"github.com/dreamware/apiproxy/internal/routespec"
)

// node is a single trie node. It is either a leaf (url set, both
// children nil) or an internal node (url nil, both children set).
type node struct {
	url      *routespec.ServerURL
	children [2]*node
}

// Trie is an immutable binary trie over the 32-bit sharding-key space.
type Trie struct {
	root *node
}

// Build inserts every route into a fresh trie and validates full key-space
// coverage. Routes may be given in any order.
func Build(routes []routespec.ServerRoute) (*Trie, error) {
	root := &node{}
	for _, rt := range routes {
		if err := insert(root, rt); err != nil {
			return nil, err
		}
	}
	if err := validateCoverage(root, ""); err != nil {
		return nil, err
	}
	return &Trie{root: root}, nil
}

func insert(root *node, rt routespec.ServerRoute) error {
	cur := root
	for i := 0; i < len(rt.Prefix); i++ {
		if cur.url != nil {
			return fmt.Errorf("trie: duplicated route %q (ancestor prefix is already a leaf)", routespec.Bits(rt.Prefix[:i]).String())
		}
		idx := bitIndex(rt.Prefix[i])
		if cur.children[idx] == nil {
			cur.children[idx] = &node{}
		}
		cur = cur.children[idx]
	}
	if cur.url != nil || cur.children[0] != nil || cur.children[1] != nil {
		return fmt.Errorf("trie: duplicated route %q", rt.Prefix.String())
	}
	u := rt.URL
	cur.url = &u
	return nil
}

func bitIndex(b byte) int {
	if b == '1' {
		return 1
	}
	return 0
}

// validateCoverage walks the trie built so far and confirms every
// internal node has exactly two children, i.e. every 32-bit key has an
// owning leaf. bits is the bit path (e.g. "01") accumulated to reach n,
// used to name the missing route, in dotted form, in the error.
func validateCoverage(n *node, bits string) error {
	if n.url != nil {
		return nil
	}
	if n.children[0] == nil {
		return fmt.Errorf("trie: missing route %q", routespec.Bits(bits+"0").String())
	}
	if n.children[1] == nil {
		return fmt.Errorf("trie: missing route %q", routespec.Bits(bits+"1").String())
	}
	if err := validateCoverage(n.children[0], bits+"0"); err != nil {
		return err
	}
	return validateCoverage(n.children[1], bits+"1")
}

// MatchShardingKey descends the trie taking bit 31 first down to bit 0,
// returning the owning server's URL. It panics if the trie's coverage
// invariant has somehow been violated, which Build's validation makes
// unreachable in practice.
func (t *Trie) MatchShardingKey(k uint32) routespec.ServerURL {
	cur := t.root
	for depth := 0; depth < 32; depth++ {
		if cur.url != nil {
			return *cur.url
		}
		bit := (k >> uint(31-depth)) & 1
		cur = cur.children[bit]
		if cur == nil {
			panic("trie: nil child reached — coverage invariant violated")
		}
	}
	if cur.url != nil {
		return *cur.url
	}
	panic("trie: no leaf reached within 32 steps — coverage invariant violated")
}

// Leaves returns the distinct server URLs owning at least one leaf,
// in the order first encountered by a left-to-right (bit 0 before bit
// 1) traversal. Used by serverscfg to enumerate the fleet.
func (t *Trie) Leaves() []routespec.ServerURL {
	var out []routespec.ServerURL
	seen := make(map[routespec.ServerURL]bool)
	var walk func(n *node)
	walk = func(n *node) {
		if n.url != nil {
			if !seen[*n.url] {
				seen[*n.url] = true
				out = append(out, *n.url)
			}
			return
		}
		walk(n.children[0])
		walk(n.children[1])
	}
	walk(t.root)
	return out
}
