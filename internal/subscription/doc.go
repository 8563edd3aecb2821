// Package subscription is the delivery engine: it turns a fact.Request into
// an ordered, gap-free, duplicate-free sequence of Observer calls.
//
// Each subscription runs in its own goroutine. It first captures the
// store's latest serial and replays everything up to it (catchup), then,
// for continuous requests, waits for append signals or a fallback timer and
// re-scans from its cursor (tail). Facts are handed to the Observer one at a
// time, strictly in serial order, and the cursor only ever moves forward.
//
// Append signals are treated as a latency hint. The fallback timer bounds
// how long a lost or coalesced signal can delay delivery.
package subscription
