// Package harness runs YAML scenarios against a real persistence hierarchy
// and checks the resulting trace and object state.
//
// # Scenario Format
//
//	name: cascade_basic
//	description: "Leaf writes reach the store"
//	setup:
//	  - op: insert
//	    role: root
//	    kind: note
//	    ref: seed
//	    attrs: { title: seed }
//	flow:
//	  - op: insert
//	    role: leaf
//	    kind: note
//	    ref: a
//	    attrs: { title: hello }
//	  - op: commit_sync
//	    role: leaf
//	    fail: [main]
//	    expect: failed
//	assertions:
//	  - type: count
//	    kind: note
//	    count: 1
//	  - type: commit_order
//	    roles: [root, leaf]
//
// Steps: insert, update, delete, commit_sync, commit_async, reset,
// delete_objects, destroy, reinit and remove_file. Refs name objects
// across steps; ids are generated sequentially (obj-0001, obj-0002, ...)
// so traces are reproducible.
//
// # Assertion Types
//
//   - count: number of objects of a kind visible from a context
//   - final_state: attributes (subset match) or absence of a ref
//   - has_changes: whether a context holds pending changes
//   - trace_count: number of events with an op and optional result
//   - commit_order: exact sequence of roles whose level committed
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON trace with
// testdata/golden/<name>.golden.
package harness
