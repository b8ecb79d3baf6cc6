// Package reserve implements the reserve-random handler: it draws a
// cryptographically random entity id from the mode's configured
// interval, resolves the owning backend through the current routing
// plane, and POSTs a reservation request there, retrying the draw on a
// 409 Conflict up to a fixed number of attempts.
//
//	loop up to maxAttempts:
//	    id := uniform random in [min, max]
//	    path := mode.BuildReservePath(u2(id))
//	    resolve upstream from shardKey(id), as dispatcher does for a sharded path
//	    POST body, forwarding client headers, no redirects
//	    409           -> retry
//	    transport err -> abort, fail
//	    otherwise     -> accept, relay verbatim
//	exhausted -> 500 "All <ReservationType> attempts have failed.\n"
package reserve
