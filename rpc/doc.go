// Package rpc provides the communication layer of the bot: the HTTP server that receives
// the webhook of the chat platform and the REST client that talks to the remote document
// store.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures for the server and the remote client, and the
//     custom logger integrated with Dragonboat's logger package.
//
//   - transport: Network communication abstractions (IHTTPServerTransport,
//     IRESTClientTransport) with an implementation on top of net/http.
//
//   - server: The bot server. It wires the datasets, the bot state and the HTTP routes
//     (webhook, health, status and metrics) together and owns the process lifecycle.
package rpc
