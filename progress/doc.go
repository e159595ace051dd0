// Package progress provides immutable transfer progress snapshots and a
// non-blocking broadcast stream for delivering them to multiple subscribers.
//
// A producer starts with Start(totalBytes) and derives a new Snapshot on each
// byte-count change; snapshots are values and are never mutated in place.
// A Broadcaster fans snapshots out to any number of subscribers; a slow or
// absent subscriber loses intermediate snapshots rather than slowing the
// transfer.
//
// Example:
//
//	b := progress.NewBroadcaster()
//	updates, cancel := b.Subscribe()
//	defer cancel()
//
//	snap := progress.Start(total)
//	b.Publish(snap)
//	for n := range chunks {
//	    snap = snap.Update(snap.BytesTransferred + int64(n))
//	    b.Publish(snap)
//	}
//	b.Publish(snap.Finish())
package progress
