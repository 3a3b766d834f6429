// Package state persists checkpoints of parameter sets.
//
// A Store saves and loads snapshots per Ref. Resolver sits between a Store
// and a *paramgrid.Parameters: Resolve restores the first stored checkpoint
// among a list of refs, Save stamps and stores the current one, and Mutate
// runs an edit under an ETag check and rolls the set back if it fails.
//
// Refs render to keys of the form baseline/<domain> and
// <kind>/<id>/<domain>, which ParseRef reverses. MemoryStore is the
// in-process Store used by tests and examples.
package state
