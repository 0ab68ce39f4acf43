// Package common provides configuration structures and utilities shared across the bot.
//
// Key Components:
//
//   - ServerConfig: Configuration of the bot server, including the remote store backend,
//     the cache parameters of both datasets (TTL, debounce), the circuit breaker, the
//     webhook and logging. Validate reports values the server cannot run with, String
//     renders a sectioned summary with secrets redacted.
//
//   - ClientConfig: Configuration of the REST client talking to the remote document store
//     (base url, token, timeout, retries and rate limit).
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
//     InitLoggers installs it and sets the level of every named logger.
package common
