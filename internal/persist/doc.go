// Package persist coordinates one file-backed store through three layered
// contexts.
//
//	Leaf (background) -> Main (UI) -> Root (background) -> store
//
// Each Context is bound to one domain.Domain and its state is only touched
// by tasks on that domain. Callers read and mutate through Perform or
// PerformAsync, which hand out a Tx valid for the duration of the callback.
//
// # Cascading commit
//
// CommitSync and CommitAsync walk the lineage of a context. Each level
// commits its own pending changes on its own domain: into the parent's
// pending set, or into the store at Root. A level with nothing pending ends
// the cascade successfully; a failing level ends it with false and keeps
// its changes pending. Only a boolean crosses the API; causes are logged.
//
// # Recovery
//
// Manager.DestroyStore resets every context and recreates an empty store.
// When that fails the Holder replaces the whole Manager. Replacement is
// observable through Manager.ID, Manager.Generation and Manager.Stale: a
// stale manager rejects new work. Its store is detached before the
// successor attaches, so work already queued on it still runs but fails
// once it reaches Root. Holder.Reinitialize may be called from any task,
// including one running on a context's domain.
//
// Holder.Close is teardown: contexts are reset, session state is cleared
// and the store files are deleted. It never fails outwardly.
package persist
