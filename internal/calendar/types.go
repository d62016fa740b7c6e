package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

// EventTime is the start or end of an event. Timed events set DateTime,
// all-day events set Date.
type EventTime struct {
	DateTime string `json:"date_time,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

// Event is the subset of a Google Calendar event exposed to callers.
type Event struct {
	ID               string     `json:"id"`
	Status           string     `json:"status,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	Description      string     `json:"description,omitempty"`
	Location         string     `json:"location,omitempty"`
	HTMLLink         string     `json:"html_link,omitempty"`
	Start            *EventTime `json:"start,omitempty"`
	End              *EventTime `json:"end,omitempty"`
	RecurringEventID string     `json:"recurring_event_id,omitempty"`
	Organizer        string     `json:"organizer,omitempty"`
	Created          string     `json:"created,omitempty"`
	Updated          string     `json:"updated,omitempty"`
}

// EventPage is one page of a list query.
type EventPage struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

// ListQuery selects events within [TimeMin, TimeMax), both RFC3339.
type ListQuery struct {
	TimeMin          string
	TimeMax          string
	TimeZone         string
	Query            string
	MaxResults       int64
	IncludeCancelled bool
	PageToken        string
}

// EventInput represents the input for creating a timed event.
// Start and End are RFC3339 date-times, with or without offset.
type EventInput struct {
	Summary     string
	Description string
	Start       string
	End         string
	TimeZone    string
}

// EventPatch lists the fields to change on an event. Empty fields are left
// untouched; Start and End must be given together.
type EventPatch struct {
	Summary  string
	Start    string
	End      string
	TimeZone string
}

// toEvent converts a Google Calendar event to an Event
func toEvent(ev *calendar.Event) Event {
	if ev == nil {
		return Event{}
	}

	out := Event{
		ID:               ev.Id,
		Status:           ev.Status,
		Summary:          ev.Summary,
		Description:      ev.Description,
		Location:         ev.Location,
		HTMLLink:         ev.HtmlLink,
		Start:            toEventTime(ev.Start),
		End:              toEventTime(ev.End),
		RecurringEventID: ev.RecurringEventId,
		Created:          ev.Created,
		Updated:          ev.Updated,
	}
	if ev.Organizer != nil {
		out.Organizer = ev.Organizer.Email
	}
	return out
}

func toEventTime(t *calendar.EventDateTime) *EventTime {
	if t == nil {
		return nil
	}
	return &EventTime{DateTime: t.DateTime, Date: t.Date, TimeZone: t.TimeZone}
}

func timed(dateTime, tz string) *calendar.EventDateTime {
	return &calendar.EventDateTime{DateTime: dateTime, TimeZone: tz}
}
