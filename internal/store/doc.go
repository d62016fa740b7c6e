// Package store defines the persistence seams for linked calendar accounts
// and the reminders mirrored into their calendars.
//
// The postgres subpackage implements both stores on pgx. The storetest
// subpackage provides in-memory implementations for tests.
package store
