// Package commands defines the searchflow CLI and wires the data gateway for subcommands.
//
// Commands
//
//   - search   Feed search terms through a session and print the results
//   - load     Print every character followed by every planet
//   - serve    Serve sessions over a websocket at /ws
//   - tui      Search interactively in the terminal
//   - seed     Create and populate the sqlite gateway
//
// # Implementation
//
// The root command loads the configuration and builds the gateway before any
// subcommand runs. Gateway resources, such as the fixture watcher, live in a
// process-wide lifecycle group that is closed after the subcommand returns.
package commands
