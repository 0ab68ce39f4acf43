// Package cmd implements the command-line interface of Jarvis. It provides a
// hierarchical command structure for running the webhook server and for working
// with its datasets without a running server.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the webhook server
//   - dataset: Commands to read and edit the datasets (get, dump, set, status)
//   - util: Shared flags, environment handling and configuration parsing (internal use)
//
// Configuration is read from flags, JARVIS_<FLAG> environment variables and the
// variable names of older deployments (GIST_TOKEN, GIST_ID_CORE, PORT, ...). The
// files .env and .env.local are loaded on start.
//
// See jarvis -help for a list of all commands.
package cmd
