package calendar

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ManagedDescription marks events created from reminders. Such events are
// owned by the reminder records and must not be edited as plain events.
const ManagedDescription = "Lembrete criado pela BIA 🐝"

const managedTag = "bia 🐝"

// IsManagedEvent reports whether ev was created from a reminder.
func IsManagedEvent(ev *Event) bool {
	if ev == nil {
		return false
	}
	desc := strings.ToLower(ev.Description)
	if strings.Contains(desc, "lembrete criado pela bia") || strings.Contains(desc, managedTag) {
		return true
	}
	return strings.Contains(strings.ToLower(ev.Summary), managedTag)
}

// IsNotFound reports whether err is a Calendar API 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
