// Package serverscfg builds and holds the immutable routing plane for
// one generation of the backend fleet: a servers trie, the minimum id
// owned by each server, the total server ordering used for enumerate
// pagination, and a version token derived from the raw config bytes.
//
// # Overview
//
//	┌───────────────────────────────────────────┐
//	│              ServersConfig                  │
//	├───────────────────────────────────────────┤
//	│  trie          *trie.Trie   (key -> URL)    │
//	│  minIDs        map[URL]i64  (URL -> min id) │
//	│  firstServerURL URL         (owns MinI64)   │
//	│  successor     map[URL]*URL (total order)   │
//	│  version       string       (hex md5(raw))  │
//	└───────────────────────────────────────────┘
//
// A *ServersConfig is built once by Load/New and never mutated
// afterwards; the process-wide "current config" cell (owned by
// cmd/apiproxy) holds a pointer to one of these and swaps it atomically
// on reload, so in-flight requests that captured an old pointer keep
// using a fully consistent snapshot.
package serverscfg
