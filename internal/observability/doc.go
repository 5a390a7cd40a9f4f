// Package observability builds the process logger.
//
// Every component receives a *zap.Logger from here. Request-scoped fields such as
// request_id are added by the HTTP middleware, not by this package.
package observability
