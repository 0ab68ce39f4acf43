// Package breaker implements a consecutive-failure circuit breaker for a single remote
// dependency. It has no half-open state: once the cool-down deadline passed, the next
// caller simply tries again and its outcome decides.
package breaker
