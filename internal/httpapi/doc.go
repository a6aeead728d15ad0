// Package httpapi exposes an order service over HTTP/JSON.
//
// Routes:
//
//	GET    /api/menu
//	GET    /api/current-order
//	DELETE /api/current-order
//	PUT    /api/current-order/items/{id}   body {"qty": n}
//	DELETE /api/current-order/items/{id}
//	POST   /api/current-order/commit
//	GET    /api/summary
//	GET    /api/summary/orders-list
//	GET    /api/summary/daily
//	GET    /api/summary/total-price-including-gst
//	GET    /api/summary/total-gst
//	GET    /api/summary/total-revenue-excluding-gst
//	GET    /api/health
//
// Failures are reported as {"error": message}.
package httpapi
