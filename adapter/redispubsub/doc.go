// Package redispubsub provides a networked ulink transport over Redis
// pub/sub channels.
//
// Transport name: "redis-pubsub"
//
// Each topic URI maps to one Redis channel named by the URI's canonical
// string form; the message envelope travels as a JSON document with the
// payload bytes base64-encoded. Sink filtering happens on the
// registration side: every subscriber for a topic receives the channel
// traffic and matches it against its own registrations.
//
// Minimal config keys:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - username, password, db: client credentials
//   - tls, tls_server_name: enable TLS
//
// Redis pub/sub is fire-and-forget: subscribers absent at publish time
// never see the message, which is exactly the registered-at-send-time
// contract of the Transport interface. There is no persistence or
// replay.
package redispubsub
