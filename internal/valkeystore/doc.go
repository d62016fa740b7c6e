// Package valkeystore backs the sequencer's locks and pace markers and the
// one-shot calendar link codes with a Valkey (or Redis) server.
package valkeystore
