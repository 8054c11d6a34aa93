// Package domain provides serial execution domains.
//
// A Domain owns one FIFO queue and one consumer. State confined to a domain
// is only ever touched from tasks running on it, which makes the domain the
// sole mutual exclusion for that state.
//
// Background domains run their own goroutine (Start). The UI domain is
// driven by the application's main loop (Run).
//
// Submit enqueues and returns. Do enqueues and waits. The context handed to
// a task records every domain held by the goroutine running it; a Do aimed
// at a held domain runs inline:
//
//	leaf.Do(ctx, func(ctx context.Context) error {
//	    return main.Do(ctx, func(ctx context.Context) error {
//	        // leaf is held here; leaf.Do(ctx, ...) runs inline
//	        return nil
//	    })
//	})
//
// There is no cancellation of scheduled work. Close stops intake; the queue
// drains before Done closes.
package domain
