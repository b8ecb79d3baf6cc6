// Package routespec parses the two textual grammars that make up a
// config-file line: the route specifier (a bit-prefix over the
// sharding key's high-order bits) and the backend server URL it maps
// to.
package routespec

import (
	"fmt"
	"net/url"
	"strings"
)

// Bits is a bit-prefix string over the sharding key's high-order bits,
// e.g. "01" means "bit 31 is 0, bit 30 is 1". The empty string matches
// every key (a single-server config).
type Bits string

// MaxDepth is the longest bit-prefix the route grammar allows.
const MaxDepth = 20

// ParseRoute parses a route specifier of the form "b1.b2...bk.*" where
// each bi is "0" or "1" and 0 <= k <= MaxDepth. "*" alone is the
// zero-bit route (matches everything).
func ParseRoute(tok string) (Bits, error) {
	if !strings.HasSuffix(tok, "*") {
		return "", fmt.Errorf("routespec: route %q must end with '*'", tok)
	}
	prefix := strings.TrimSuffix(tok, "*")
	if prefix == "" {
		return "", nil
	}
	if !strings.HasSuffix(prefix, ".") {
		return "", fmt.Errorf("routespec: route %q malformed, expected dot-separated bits before '*'", tok)
	}
	segments := strings.Split(strings.TrimSuffix(prefix, "."), ".")
	if len(segments) > MaxDepth {
		return "", fmt.Errorf("routespec: route %q has %d bits, max is %d", tok, len(segments), MaxDepth)
	}
	bits := make([]byte, len(segments))
	for i, seg := range segments {
		if seg != "0" && seg != "1" {
			return "", fmt.Errorf("routespec: route %q has non-binary segment %q", tok, seg)
		}
		bits[i] = seg[0]
	}
	return Bits(bits), nil
}

// String renders bits back into dotted route-specifier form, e.g.
// "01" -> "0.1.*", "" -> "*". Used for error messages that must name
// the offending route (see trie.Build).
func (b Bits) String() string {
	if len(b) == 0 {
		return "*"
	}
	var sb strings.Builder
	for _, c := range []byte(b) {
		sb.WriteByte(c)
		sb.WriteByte('.')
	}
	sb.WriteByte('*')
	return sb.String()
}

// ServerURL is a normalized, validated absolute http:// backend URL.
type ServerURL string

// ParseServerURL validates that s is an absolute URL with scheme
// strictly "http" and returns its normalized string form.
func ParseServerURL(s string) (ServerURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("routespec: invalid server url %q: %w", s, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("routespec: server url %q is not absolute", s)
	}
	if u.Scheme != "http" {
		return "", fmt.Errorf("routespec: server url %q has scheme %q, only \"http\" is allowed", s, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("routespec: server url %q has no host", s)
	}
	return ServerURL(u.String()), nil
}

// String satisfies fmt.Stringer.
func (u ServerURL) String() string {
	return string(u)
}

// ServerRoute pairs a bit-prefix with the backend it routes to.
type ServerRoute struct {
	Prefix Bits
	URL    ServerURL
}

// ParseLine parses one non-blank config-file line, already split into
// its route and URL tokens.
func ParseLine(routeTok, urlTok string) (ServerRoute, error) {
	prefix, err := ParseRoute(routeTok)
	if err != nil {
		return ServerRoute{}, err
	}
	u, err := ParseServerURL(urlTok)
	if err != nil {
		return ServerRoute{}, err
	}
	return ServerRoute{Prefix: prefix, URL: u}, nil
}
