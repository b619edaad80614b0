// Package broadcast polls a set of BOINC clients and fans every snapshot out
// to the consumers currently attached.
//
// Each Loader gets its own goroutine. A loop only polls while at least one
// consumer is attached, so an idle pool generates no GUI RPC traffic:
//
//	pool := broadcast.New(loaders, broadcast.WithInterval(time.Second))
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	q := pool.Attach()
//	defer pool.Detach(q)
//	for {
//		snap, err := q.Get(ctx)
//		...
//	}
//
// Queues are bounded. When a consumer falls behind, new snapshots for it are
// dropped rather than blocking the loop or the other consumers.
package broadcast
