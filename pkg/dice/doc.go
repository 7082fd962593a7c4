// Package dice implements the hardware (platform) RoT boundary: the signed
// statement schema, a fixture-backed mock of the platform RoT, and the
// chain-of-trust verification used by the challenger.
//
// The platform RoT signs a [Statement] binding a 32-byte nonce to the digest
// of its measurement [Log]. Statements and logs travel as CBOR under
// capacity bounds known from their schemas; exceeding a bound is a schema
// error, not a runtime input error.
//
// [Mock] stands in for real platform-RoT hardware during development and
// testing. It is loaded from fixture files (signing key, leaf-first cert
// list, serialized measurement log) produced by the fixture tooling.
package dice
