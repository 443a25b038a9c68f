// Package ulink is a transport-agnostic publish/subscribe and
// point-to-point notification layer for uniquely addressed entities
// (uEntities).
//
// A sender publishes a message to a logical resource addressed by a
// structured URI; any number of interested parties register listeners for
// that resource; a dedicated notify pattern delivers targeted one-to-one
// notifications. Applications never learn whether delivery happens
// in-process or across a network: everything above the Transport contract
// (Publisher, Notifier) depends only on the interface.
//
// Concrete transports live under adapter/:
//
//   - adapter/local: in-process delivery through a shared dispatcher
//   - adapter/redispubsub: cross-process delivery over Redis pub/sub
//
// Minimal usage:
//
//	uris := ulink.NewStaticURIProvider("veh-1", 0x1001, 0x01)
//	tr := local.NewTransport(local.Config{})
//	pub := ulink.NewPublisher(tr, uris)
//
//	reg, _ := tr.RegisterListener(ctx, uris.ResourceURI(0xB4C1), nil,
//		ulink.NewListener(func(msg ulink.Message) {
//			if text, ok := msg.Payload.ExtractText(); ok {
//				fmt.Println(text)
//			}
//		}))
//	defer tr.UnregisterListener(ctx, reg)
//
//	payload, _ := ulink.TextPayload("ping")
//	_ = pub.Publish(ctx, 0xB4C1, ulink.CallOptions{}, &payload)
package ulink
