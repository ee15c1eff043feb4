// Package eurocore implements the dispatch job core: authenticated sessions
// against the eurocore API, the HTTP contract wrapper, the in-memory job
// registry with its state machine, and the fixed-interval poll sweep that
// reconciles tracked jobs and notifies initiators on terminal transitions.
package eurocore
