// Package api hosts the HTTP server, middleware, and REST handlers used by
// the dashboard and case management tools. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/monitoring-jobs for scheduling crawls of a work.
//   - PATCH /v1/detections/{id}/status for analyst review.
//   - /v1/takedowns for creating, retrying and tracking removal notices.
//
// Every /v1 route requires the X-Tenant-ID header and, when configured, a
// matching X-API-Key.
package api
