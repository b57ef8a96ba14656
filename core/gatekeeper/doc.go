// Package gatekeeper authenticates websocket connections and owns session
// lifecycle.
//
// Every connection is verified before any event flows: the credential is
// checked for signature, expiry, and revocation, the user's profile is
// snapshotted, and the resulting session is joined to the user's personal
// room. A rejected handshake leaves no session state behind and closes the
// connection with a reason code. Authentication is the one fail-closed path
// in the system; when the revocation denylist cannot be reached the
// handshake is rejected rather than waved through.
//
// Disconnect is idempotent. Read errors, write errors, and shutdown all
// funnel into the same teardown, and only the first signal does the work:
// room membership is released synchronously, then presence is marked offline
// in the background.
//
//	verifier, _ := gatekeeper.NewJWTVerifier(cfg.JWTSecret)
//	keeper := gatekeeper.New(verifier, identities, rooms,
//		gatekeeper.WithDenylist(gatekeeper.NewRedisDenylist(client)),
//		gatekeeper.WithGuard(guard),
//	)
//	mux.Handle("/ws", keeper.Handler(service.HandleEvent))
//
// The Handler's EventHandler callback receives decoded client events;
// returning *NotMemberError, *PermissionError, or *rateguard.RateLimitError
// sends the matching structured error to the client while the connection
// stays open.
package gatekeeper
