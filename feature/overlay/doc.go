// Package overlay recomputes the tier-specific profit view ("overlay") of every
// catalog table and serves it.
//
// A run is planned once: rules are preloaded, base tables parsed, and the prices
// of every referenced item warmed into a per-run context. One tier runner per tier
// then copies each table's base rows, prices them row by row, decides the table's
// aggregation and hands the result to the writer. The writer is the only path to
// the overlay tables; it coalesces, de-duplicates and skips unchanged content.
//
// Row pricing, first match wins:
//
//	coin (Id 1)     floor(AverageAmount), untaxed
//	composite       expected value of the referenced table, times quantity on detail tables
//	leaf with Id    taxed market price, vendor value when the item has none
//	anything else   the row's formula, zero and a reported problem without one
//
// Main-table rows additionally get hourly rates when they carry a Duration.
package overlay
