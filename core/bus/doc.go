// Package bus implements the cross-instance fan-out relay: a broadcast
// published on one server instance reaches sessions connected to any other
// instance through the shared store's pub/sub, one channel per room.
//
// Two implementations are provided. RedisBus is the production relay; it
// tracks the rooms with local members, re-subscribes to all of them after a
// connection loss, and degrades to local-only delivery when the shared store
// is unreachable. A publish never blocks or fails the mutation that
// triggered it. MemoryBus with an optional MemoryBroker serves tests and
// single-instance runs.
//
//	b := bus.NewRedisBus(client, bus.WithRedisBusLogger(log))
//	b.Subscribe(func(env bus.Envelope) { rooms.Deliver(env) })
//	g.Go(b.Run(ctx))
//
// Delivery is at-most-once and unordered across instances. Within one
// instance's Publish calls, local delivery order matches call order because
// local delivery happens synchronously before the relay.
package bus
