// Package enumpage rewrites ObjectReferencesPage JSON responses so
// that per-server pagination chains stitch into one fleet-wide chain,
// and so that a configuration change mid-traversal invalidates the
// chain instead of silently returning inconsistent data.
//
// # Rewrite outcomes
//
//	not JSON / not 200 / wrong "type"   -> body passed through unchanged
//	same config version end-to-end      -> next set to same-shard next page,
//	                                        or to the successor server's
//	                                        minimum-id page if this was the
//	                                        last page on the shard
//	config version changed mid-traversal -> items cleared, next set to the
//	                                        mode's invalid path so the
//	                                        client's next fetch fails and
//	                                        restarts the traversal
package enumpage
