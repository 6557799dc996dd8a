// Package domain contains the core types and pure logic of the
// transbatch pipeline: custom-id encoding and decoding, result
// envelope shapes, payload extraction, field streams, reconciliation
// reports and merged records.
//
// Everything in this package is free of I/O. Adapters and services
// build on these types; they never reach around them.
package domain
