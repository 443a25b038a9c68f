// Package local provides the in-process transport for ulink.
//
// Transport name: "local"
//
// Config keys:
//   - workers: size of a private dispatch pool (default 0 = shared
//     process-wide dispatcher)
//   - queue_size: private pool queue capacity (default 1024)
//
// Delivery semantics: Send snapshots the listeners registered for the
// message's source URI (honoring sink filters for notifications) under
// the registry lock, then dispatches to each independently. One slow or
// panicking listener never blocks or fails delivery to the others, and a
// failing listener stays registered.
//
// Example:
//
//	tr := local.NewTransport(local.Config{}, local.WithLogger(logger))
//	defer tr.Close(context.Background())
package local
