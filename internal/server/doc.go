// Package server hosts the curation API behind a single HTTP gateway.
//
// Every request flows through the same chain: trace correlation assigns or
// adopts a trace id, the fixed-window rate limiter enforces per-client
// budgets on /api/ routes, and the authenticator verifies bearer tokens and
// applies the static role table before a handler runs. Logging, audit,
// metrics and panic recovery wrap the whole chain so failures anywhere
// produce the same JSON error envelope.
package server
