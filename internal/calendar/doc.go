// Package calendar provides a client for the Google Calendar events API.
//
// The client lists, reads, creates, patches and deletes events of one
// linked account. Every call is traced and recorded in the Google API
// metrics; errors wrap the underlying *googleapi.Error so callers can
// classify them.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, google.HTTPClient(ctx, tokenSource))
//	if err != nil {
//	    return err
//	}
//
//	page, err := client.ListEvents(ctx, "primary", calendar.ListQuery{
//	    TimeMin: "2024-05-01T00:00:00-03:00",
//	    TimeMax: "2024-05-08T00:00:00-03:00",
//	})
package calendar
