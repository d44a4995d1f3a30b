// Package rules holds the calculation rule registry.
//
// A rule is keyed by (category, key), with case-insensitive category matching, and
// carries the aggregation operation of a table, a tax percent, an optional formula
// document and an optional source-table override used to redirect INTERNAL lookups.
//
// The registry is preloaded once per run and read concurrently by every tier. Its
// only write path, SetOperation, records the aggregation policy discovered while
// building TOTAL rows; the write lands in the database and becomes visible in memory
// with the next Preload.
package rules
