// Package record implements the record lifecycle and relation graph.
//
// A Record is one row of a record type: it holds attribute values, knows
// whether it exists in the backing store, tracks whether it changed since it
// was loaded (IsDirty) and which attributes failed validation on the last
// save (InvalidAttributes). Save validates every declared rule and only
// delegates to the store when all of them pass; validation failures are
// returned as data, never as errors.
//
// Relations link a record to records of another type. They are built when a
// record is populated and resolved lazily on first read:
//
//	customers, _ := record.NewRepository(reg, "customer")
//	ann, _ := customers.Find(ctx, 1)
//	orders, _ := ann.Related(ctx, "orders")
//
// Records and their relations are not safe for concurrent mutation; scope a
// record graph to one goroutine at a time.
package record
