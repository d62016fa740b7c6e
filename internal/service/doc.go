// Package service implements calendar linking and the event and reminder
// operations performed on behalf of a phone number.
//
// Every call to a linked calendar runs inside the account's sequencer key
// ("calendar:<account id>") so that requests for one account are serialized
// and paced across all processes, and each remote call goes through the
// resilience invoker. Credentials refreshed along the way are written back
// to the account store.
package service
