// Package sequencer serializes and paces work per coordination key across
// processes.
//
// A Sequencer holds a lock record ("throttle:lock:<key>") in a shared
// LockStore for the duration of a task and keeps a pace marker
// ("throttle:last:<key>") holding the epoch milliseconds of the last
// successful run. Before a task starts the Sequencer waits until at least
// minInterval has elapsed since that marker.
//
// Locks are released with an atomic compare-and-delete so a holder whose
// lock already expired can never remove a newer holder's lock. A holder
// that crashes leaves a lock that expires after its TTL.
//
// A Sequencer built with a nil LockStore, or whose store cannot be reached,
// runs tasks immediately without coordination and logs a warning.
//
// # Usage
//
//	seq := sequencer.New(valkeystore.NewLockStore(client), sequencer.WithLogger(logger))
//
//	events, err := sequencer.Run(ctx, seq, "calendar:"+account.ID, 700*time.Millisecond,
//	    func(ctx context.Context) ([]*calendar.Event, error) {
//	        return client.ListEvents(ctx, opts)
//	    })
package sequencer
