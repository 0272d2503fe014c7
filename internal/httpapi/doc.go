// Package httpapi exposes the broadcaster's host control surface over HTTP.
//
// Routes:
//
//	POST   /events/{id}   post an event; body {"payload": [...], "urgent": bool}
//	PUT    /suspend       body {"suspended": bool}
//	GET    /allow-list
//	PUT    /allow-list    body {"ids": [1, 2]}
//	DELETE /allow-list
//	GET    /stats
//	GET    /healthz
//	GET    /readyz
//	GET    /metrics       when a Prometheus gatherer is configured
//
// Every state-changing request is executed on the broadcaster's loop by the
// Service implementation.
package httpapi
