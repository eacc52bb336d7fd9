// Package enrich drives one identification run: it hosts the job's images,
// builds the instruction set, runs the bounded model/tool conversation loop
// as an explicit state machine, validates the resulting bundle, and applies
// the deterministic image- and price-coverage backfills before returning.
package enrich
