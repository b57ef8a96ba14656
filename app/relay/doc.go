// Package relay assembles the realtime fan-out service.
//
// App wires the full pipeline from environment configuration: redis client,
// cache-aside layer, fan-out bus, room manager, gatekeeper, rate guard, and
// invalidation coordinator. The two collaborators the relay does not own,
// persistence and identity resolution, are injected by the host:
//
//	app, err := relay.NewApp(
//		relay.WithPersistence(store),
//		relay.WithIdentities(identities),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Service is the event router behind the websocket endpoint: it checks
// membership, persists writes through the injected store, and hands each
// mutation to the invalidation coordinator so cache entries are dropped
// before the change is broadcast.
package relay
