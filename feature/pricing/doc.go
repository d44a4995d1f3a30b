// Package pricing owns the per-item price tier ladder and its refresh scheduler.
//
// Every item carries one (buy, sell) pair and refresh timestamp per tier. The fast
// tier is refreshed on an activity-weighted interval (short for busy items, long for
// the rest); each coarser tier has its own fixed interval. A refresh cycle picks the
// stale tradable items oldest first, fetches quotes in capped batches from the market
// API (and metadata only for ids missing vendor value, image or rarity), and writes
// back one upsert per item that touches only the tiers that were due.
//
// Transient API failures are retried with bounded exponential backoff; exhausting the
// retries skips that batch only.
package pricing
