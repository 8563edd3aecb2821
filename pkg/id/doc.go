// Package id generates and parses fact identifiers.
//
// Fact ids are RFC 9562 UUIDs. Generated ids are version 7: the leading 48
// bits carry the Unix millisecond timestamp, so byte-wise comparison of ids
// produced by one Generator follows creation order.
//
// Usage
//
//	g := id.NewGenerator()
//	newID := g.Next()
//	s := newID.String()
//	back, err := id.Parse(s)
package id
