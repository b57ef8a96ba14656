// Package event defines the typed event surface of the real-time layer.
//
// Inbound client frames are decoded into a tagged variant per event name,
// each carrying a fixed, validated field set; frames not matching a known
// variant are rejected with ErrUnknownEvent. Outbound events mirror the
// inbound surface with past-tense names and always carry a timestamp and the
// minimal actor identity the client needs.
//
//	ev, err := event.DecodeInbound(raw)
//	if err != nil { ... emit event.ErrorEvent(event.CodeInvalidEvent, ...) }
//
//	switch ev := ev.(type) {
//	case event.SendMessage:
//		...
//	case event.TypingStart:
//		...
//	}
package event
