// Package fluidity is the client library for a fluidity server. It follows
// the live packet stream with at-most-once placement per sequence and
// applies site and collector filters.
//
// Quick start:
//
//	err := fluidity.Watch(ctx, "http://localhost:8080",
//	    fluidity.WithSites("north"),
//	    fluidity.WithRenderer(myRenderer),
//	)
//
// History fetches the server's current history in one request:
//
//	packets, err := fluidity.History(ctx, "http://localhost:8080", "")
package fluidity
