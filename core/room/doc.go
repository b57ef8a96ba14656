// Package room maps entities onto the broadcast topology: rooms are derived
// keys {type}:{id}, membership is the set of live sessions that joined the
// key, and no room exists independent of its members.
//
// The Manager owns this instance's membership registry and broadcasts
// through the fan-out bus so members connected to other instances receive
// events too:
//
//	rooms := room.NewManager(b, room.WithLogger(log))
//	rooms.Join(sess, room.Key(room.KindChannel, "abc"))
//	err := rooms.Broadcast(ctx, "channel:abc",
//		event.UserTyping(actor, "abc"),
//		room.WithSender(sess.SessionID()))
//
// Membership is a set, not a counter: duplicate joins are no-ops, as are
// leaves by non-members. Whether the sender receives its own broadcast is
// decided per event class (transient typing signals exclude it, content
// events include it for multi-device consistency) and can be overridden per
// call.
package room
