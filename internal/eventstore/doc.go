// Package eventstore holds pending acquisition events in delivery order.
//
// The store keeps a min-heap of events ordered by target time and then by the
// active axis order, deduplicates equal events, and maintains one registry per
// axis of the values discovered so far. Registries let callers address values
// by ordinal ("the second known z position") through Event.AttachIndex; such
// references are resolved once, when the event is added, against whatever the
// registries hold at that instant.
//
// A Store is not safe for concurrent use. The producer scheduler owns it and
// serializes access under its own lock.
package eventstore
