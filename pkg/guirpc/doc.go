// Package guirpc is a client for the BOINC GUI RPC protocol.
//
// # Wire format
//
// Every request is one XML document terminated by the byte 0x03:
//
//	<boinc_gui_rpc_request><get_simple_gui_info/></boinc_gui_rpc_request>\x03
//
// Parameters are child elements of the method element. Replies arrive under
// <boinc_gui_rpc_reply> with the same terminator. There is no length prefix.
//
// # Authentication
//
// When a Source has a password, Open runs the challenge exchange before
// returning: auth1 yields a nonce, auth2 answers with hex(md5(nonce+password)).
// A rejected password surfaces as an error wrapping ErrUnauthorized.
//
// # Errors
//
// All errors are structured (internal/errors) with one of the codes
// CONNECTION, UNAUTHORIZED, RESPONSE or PROTOCOL. Peer-reported <error>
// replies also unwrap to *ResponseError.
//
// Connections are not reused: Client.Call opens one, runs a single exchange
// and always closes it.
package guirpc
