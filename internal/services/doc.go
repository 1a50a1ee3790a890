// Package services talks to the X-Series retail API.
//
// # Transport
//
// [Client] turns a [RequestPlan] into HTTP calls. Every attempt first reserves a slot from the
// shared [RateBook], which spaces requests to one host by a baseline delay and stretches that
// delay once the host reports less than a tenth of its rate-limit window left. Rate-limit headers
// are recorded after every response, errors included.
//
// Retry policy:
//   - 429: wait for Retry-After (delta-seconds or HTTP date) and re-send the same bytes; capped separately.
//   - 5xx, timeouts and network failures: exponential backoff from [Options.BackoffBase], 3 attempts by default.
//   - other 4xx: returned immediately.
//
// The bearer token is attached by an [oauth2.Transport]; the client never sees or logs it.
//
// # Errors
//
// Failures are [*APIError] values. Use [errors.Is] with the shared sentinels:
//   - [shared.ErrAuth] : 401/403, the run cannot continue
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrConflict] : 409
//   - [shared.ErrValidation] : 400 and other 4xx
//   - [shared.ErrRateLimitExceeded] : 429 retries exhausted
//   - [shared.ErrServer] : 5xx after all attempts
//   - [shared.ErrTransport] : network failure or timeout after all attempts
//
// # Pagination
//
// [Walker] exposes collections as [iter.Seq2] sequences. Pages are keyed by the version cursor
// returned with each page and fetched on demand.
//
// # Account
//
// [Account] wraps an [Executor] with the entity level calls: retailer lookup, collection walks,
// creates (products return a list of ids, everything else a single object), inventory reads and
// the 2.1 inventory update.
package services
