package domain

import "context"

type heldKey struct{}

// held is the chain of domains whose loops are blocked on (or are) the
// goroutine running the current task.
type held struct {
	d    *Domain
	next *held
}

func heldChain(ctx context.Context) *held {
	h, _ := ctx.Value(heldKey{}).(*held)
	return h
}

// Holds reports whether ctx was handed out by d (directly, or by a task
// that is waiting synchronously on a task of d). Work for d can then run
// inline instead of being queued behind the caller.
func Holds(ctx context.Context, d *Domain) bool {
	for h := heldChain(ctx); h != nil; h = h.next {
		if h.d == d {
			return true
		}
	}
	return false
}

// Current returns the innermost domain ctx is running on, or nil.
func Current(ctx context.Context) *Domain {
	if h := heldChain(ctx); h != nil {
		return h.d
	}
	return nil
}

func withHeld(ctx context.Context, d *Domain) context.Context {
	return context.WithValue(ctx, heldKey{}, &held{d: d, next: heldChain(ctx)})
}

// detached strips cancellation and the held chain. Queued work runs to
// completion regardless of what happens to the submitter.
func detached(ctx context.Context, d *Domain) context.Context {
	ctx = context.WithValue(context.WithoutCancel(ctx), heldKey{}, (*held)(nil))
	return withHeld(ctx, d)
}
