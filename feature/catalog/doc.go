// Package catalog models the base tables the overlay engine recomputes.
//
// Base tables are written by the spreadsheet import pipeline and are read-only here.
// Each table stores a serialized array of rows with an informal schema. Row decodes
// the fields the engine understands into typed optional fields and keeps every other
// field verbatim, in document order, so overlays remain forward compatible with
// columns added by the import.
//
// # Reference kinds
//
//   - Leaf: no category and key; priced by item Id.
//   - Internal: category "INTERNAL"; aggregated through a formula at zero tax.
//   - Composite: any other category with a key; aggregates the referenced detail
//     table at the row's tax.
//
// Rows are deep-copied (Row.Clone) from the immutable base before any tier mutates them.
package catalog
