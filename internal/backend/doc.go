// Package backend is the HTTP client for the field operations REST API.
//
// Every request carries the worker's bearer token when one is stored. Errors
// are classified for the caller: a request that never reached the backend
// wraps services.ErrTransport and may be parked in the offline queue, while a
// non-2xx response is an *APIError wrapping services.ErrRejected and is final.
package backend
