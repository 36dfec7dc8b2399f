// Package fetch provides the governed HTTP client for upstream sources.
//
// Every request goes through the source governor: the client acquires
// admission before sending and reports the outcome after, so quota,
// spacing, backoff, and breaker state all adapt from real traffic.
// Transport errors, 5xx responses, and 429 throttling count as failures;
// other responses count as success even when the payload is a client
// error.
package fetch
