// Package server implements the local development backend: the same HTTP+JSON surface the CLI talks to,
// served from SQLite.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] uses [http.ServeMux] patterns with path wildcards and dispatches on method per pattern,
// answering 405 with an Allow header for the rest. [Middleware] wraps handlers in reverse order
// (last added executes first).
//
// # Endpoints
//
//   - GET /api/drafts/{id} : stored draft, 404 {"error":"Draft not found"} when missing
//   - PUT /api/drafts/{id} : replace draft content; titled drafts are mirrored as self-channel posts
//   - POST /api/publish/{platform} : accept a publish request, recorded as a queued post
//   - POST /api/upload : multipart "file" cover image, stored through an [Uploader]; answers {"url":...}
//   - GET /api/dashboard/activity?limit=N : publication rows, newest first
//   - POST /api/dashboard/sync : start a background [FeedSyncer] run for "all" or one platform
//
// Errors are JSON objects with a single "error" field.
package server
