// Package transport implements the request/response command protocol used
// to reach an attester over a local byte-stream channel.
//
// # Protocol
//
// Messages are newline-delimited JSON: exactly one encoded [Command] value
// followed by a single line terminator, written in one atomic write. The
// server answers each command with one JSON value plus a line terminator
// and then closes the connection. There is no length prefix; framing is
// "read until line terminator, decode the line".
//
// The channel is a unix domain socket identified by a filesystem path, but
// the protocol itself is transport-agnostic: anything presenting a
// bidirectional byte stream carries it unchanged.
//
// # Usage
//
// The attester side serves:
//
//	srv, err := transport.NewServer(path, attester)
//	err = srv.Run()
//
// The challenger side connects and uses the [Client] like any other
// rot.Attester:
//
//	client, err := transport.NewClient(path)
//	attestations, err := client.Attest(nonce, userData)
//
// Each client call is one connection: connect, one command, one response,
// close. Connections share no state besides the server's attester
// capability, which is read-only.
package transport
