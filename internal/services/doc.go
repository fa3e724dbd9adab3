// Package services implements the HTTP+JSON collaborators the core depends on.
//
// # Raw transport
//
// [APIService] performs raw GET/POST/PUT requests against the backend base URL and returns an [APIResponse]
// with the status, headers, body and (when the body parses) decoded JSON. Requests are optionally rate limited
// with golang.org/x/time/rate, and [NewHTTPClient] attaches a bearer token through an oauth2 static token source.
//
// # Collaborators
//
//   - [DraftAPI] : GET/PUT /api/drafts/:id
//   - [PublishAPI] : POST to a platform's publish endpoint
//   - [ActivityAPI] : GET /api/dashboard/activity and POST /api/dashboard/sync
//
// # Errors
//
// Non-2xx responses become a [*StatusError], which wraps [shared.ErrAPIRequest]. [StatusError.Reason] prefers the
// body's "error" field and falls back to the status text; [FailureReason] does the same for any error.
package services
