// Package trie implements the binary trie that partitions the 32-bit
// sharding-key space across backend servers.
//
// # Overview
//
// Every server in the fleet owns a bit-prefix of the sharding key's
// high-order bits, expressed as a route specifier like "0.1.*". The
// trie stores those prefixes as a binary tree: walking from the root
// and taking bit 31 first down to bit 0 always lands on exactly one
// leaf, which carries the owning server's URL.
//
//	┌─────────────────────────────────────┐
//	│               root                   │
//	│              /    \                  │
//	│           bit=0   bit=1              │
//	│            /         \               │
//	│      "0.*" leaf     bit=0  bit=1     │
//	│      (server A)      /       \       │
//	│                "1.0.*" leaf  "1.1.*" leaf
//	│                (server B)    (server C)
//	└─────────────────────────────────────┘
//
// # Invariant
//
// Every node is either a leaf (owns a server URL, has no children) or
// an internal node (owns no URL, has exactly two children). Build
// enforces this on construction; MatchShardingKey trusts it and panics
// if it is ever violated, since that would mean some 32-bit key has no
// owning server.
//
// # Concurrency
//
// A *Trie is immutable once returned by Build. Lookups take no locks.
package trie
