// Package factlog is the Pebble-backed fact store.
//
// # Keyspace
//
// Keys are lexicographically ordered for range scans:
//   - fact/m                         last committed serial
//   - fact/e/{serial_be8}            encoded fact
//   - fact/id/{uuid16}               id -> serial
//   - fact/ns/{len_be4}{ns}/{serial_be8} namespace index (empty value)
//
// The namespace is length-prefixed in the index so one namespace can never
// be a key prefix of another.
//
// Records are stored as: uvarint headerLen | header JSON | payload |
// crc32c(header|payload).
//
// # Ordering
//
// Appends are serialised by a mutex; serials are assigned in batch order and
// the committed serial is published only after the batch commits. Readers
// therefore never observe a serial at or below LatestSerial appearing later.
//
//	l, _ := factlog.Open(db, logger)
//	stored, _ := l.Publish(ctx, facts)
//	page, _ := l.ScanFrom(ctx, 0, specs, 256)
//	sig, _ := l.SubscribeToAppends(ctx)
package factlog
