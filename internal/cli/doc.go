// Package cli implements the boincwatch command-line interface.
//
// # Command Structure
//
//	boincwatch poll       - Poll every client once and print the result
//	boincwatch serve      - Stream snapshots over HTTP (SSE and websocket)
//	boincwatch monitor    - Terminal dashboard over the live snapshot stream
//	boincwatch init       - Create .boincwatch.yaml
//	boincwatch version    - Print build information
//	boincwatch completion - Generate shell completion scripts
//
// Global flags (--config, --debug) are defined on the root command.
// Commands load config through loadConfig, build GUI RPC clients with
// newClientSet (which adds SSH tunnels where configured) and hand them to
// the broadcast pool or poll them directly.
package cli
