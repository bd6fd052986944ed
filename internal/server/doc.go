// Package server provides HTTP routing, middleware, and the JSON/websocket API of the import service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [LoggingMiddleware] logs each request through charmbracelet/log; [RecoverMiddleware] turns panics into 500s.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # API
//
// [API] registers the endpoints backed by a tasks.Importer:
//
//	GET  /health
//	GET  /api/libraries          music libraries on the media server
//	POST /api/preview            normalized CSV for csv_file or csv_text
//	POST /api/imports            starts an import, 202 {"jobId"}
//	GET  /api/jobs/{id}          job snapshot, 404 {"state":"unknown"}
//	GET  /api/reports/{token}    CSV report download (single use)
//	GET  /ws?job_id={id}         websocket stream of job snapshots
//
// Sentinel errors from the shared package map to status codes and a machine-readable "code" field.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [ProgressStream] is registered this way, as is any extra handler passed to [NewHandler] (the web
// package's upload page at GET /).
package server
