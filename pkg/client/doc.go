// Package client provides a synchronous request API over the delivery
// engine.
//
// A Client owns one engine (and through it one transport) and exposes the
// request verbs as blocking calls:
//
//	tr := transport.NewUDPTransport(transport.UDPConfig{Address: "device.local:5683"})
//	c, err := client.New(client.Config{Transport: tr})
//	if err != nil {
//		// ...
//	}
//	defer c.Close()
//
//	resp, err := c.Get(ctx, "/sensors/temperature", nil)
//
// Every verb takes a context for cancellation and an optional
// RequestOptions. A call returns once the exchange resolves: with the
// response, or with an error describing how delivery failed (ErrReset,
// ErrDeliveryTimeout). Non-success response codes are not Go errors;
// inspect Response.Code or use Response.Err.
//
// # Observations
//
// Observe registers interest in a resource and streams notifications to a
// handler until the returned Observation is cancelled:
//
//	obs, err := c.Observe(ctx, "/sensors/motion", func(resp *client.Response) {
//		// called for the initial state and every change
//	})
//	// ...
//	obs.Cancel(ctx)
//
// # Fire and Forget
//
// RequestOptions.NoResponse marks a request as suppressing all responses.
// Such calls return (nil, nil) as soon as the datagram is on the wire.
package client
