// Package order defines the order API's data shapes shared by the HTTP
// client, the development order service and the cart reconciler.
//
// All monetary values are decimal.Decimal. The order service owns pricing:
// subtotal, GST and total are never recomputed by consumers of this package.
//
// # Wire Format
//
// Current order (fetch, upsert and remove all return this shape):
//
//	{ "items": [{"id": "margherita", "name": "Margherita", "unit_price": "12.50", "qty": 1}],
//	  "subtotal": "12.50", "gst": "1.25", "total": "13.75" }
//
// Commit:
//
//	{ "order_id": 7 }        on success
//	{ "error": "message" }   on failure
//
// Decoding is tolerant where older API versions differ (numeric ids, money as
// JSON numbers) and strict where the reconciler depends on a field being
// present: a response missing items or totals is ErrMalformedResponse.
package order
