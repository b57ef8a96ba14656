package room

import "github.com/hivechat/realtime/core/event"

// senderExcluded lists event classes whose originating session must not
// receive its own broadcast. Transient presence signals qualify: a client
// already renders its own typing state locally. Content events (messages,
// membership, roles) include the sender so its other devices stay
// consistent.
var senderExcluded = map[string]bool{
	event.NameUserTyping:        true,
	event.NameUserStoppedTyping: true,
}

// ExcludesSender reports whether broadcasts of the given outbound event skip
// the originating session.
func ExcludesSender(eventName string) bool {
	return senderExcluded[eventName]
}
