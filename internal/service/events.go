package service

import (
	"context"
	"errors"

	"github.com/teemow/calendarlink/internal/calendar"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/sequencer"
)

// Scope selects which instances of a recurring event an operation targets.
const (
	ScopeThis   = "this"
	ScopeSeries = "series"
)

// ReasonNotFound is reported when the targeted event no longer exists.
const ReasonNotFound = "not_found"

// Events lists and edits events on linked calendars.
type Events struct {
	core
}

// NewEvents creates the event operations.
func NewEvents(cfg Config) *Events {
	return &Events{core: newCore(cfg)}
}

// ListRequest selects events in [TimeMin, TimeMax).
type ListRequest struct {
	Phone            string `json:"phone"`
	TimeMin          string `json:"time_min"`
	TimeMax          string `json:"time_max"`
	TimeZone         string `json:"tz,omitempty"`
	Query            string `json:"q,omitempty"`
	MaxResults       int64  `json:"max_results,omitempty"`
	IncludeCancelled bool   `json:"include_cancelled,omitempty"`
}

// ListResult is one page of events.
type ListResult struct {
	OK            bool             `json:"ok"`
	CalendarID    string           `json:"calendar_id"`
	TimeMin       string           `json:"time_min"`
	TimeMax       string           `json:"time_max"`
	Items         []calendar.Event `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// List returns the caller's events in a time range.
func (e *Events) List(ctx context.Context, req ListRequest) (ListResult, error) {
	if req.Phone == "" || req.TimeMin == "" || req.TimeMax == "" {
		return ListResult{}, ErrMissingFields
	}

	s, err := e.activeSession(ctx, req.Phone)
	if err != nil {
		return ListResult{}, err
	}

	return sequencer.Run(ctx, e.seq, s.key(), ListInterval, func(ctx context.Context) (ListResult, error) {
		q := calendar.ListQuery{
			TimeMin:          calendar.NormalizeRFC3339(req.TimeMin),
			TimeMax:          calendar.NormalizeRFC3339(req.TimeMax),
			TimeZone:         req.TimeZone,
			Query:            req.Query,
			MaxResults:       req.MaxResults,
			IncludeCancelled: req.IncludeCancelled,
		}

		page, err := invoke(ctx, &e.core, s, "events.list", func(ctx context.Context, api calendar.API) (*calendar.EventPage, error) {
			return api.ListEvents(ctx, s.calendarID(), q)
		})
		if err != nil {
			return ListResult{}, err
		}

		return ListResult{
			OK:            true,
			CalendarID:    s.calendarID(),
			TimeMin:       q.TimeMin,
			TimeMax:       q.TimeMax,
			Items:         page.Items,
			NextPageToken: page.NextPageToken,
		}, nil
	})
}

// PatchRequest changes the summary and/or time of an event.
type PatchRequest struct {
	Phone    string `json:"phone"`
	EventID  string `json:"event_id"`
	Summary  string `json:"summary,omitempty"`
	StartAt  string `json:"start_at,omitempty"`
	EndAt    string `json:"end_at,omitempty"`
	TimeZone string `json:"tz,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// PatchResult reports whether the remote event was changed.
type PatchResult struct {
	OK              bool   `json:"ok"`
	UpdatedOnGoogle bool   `json:"updatedOnGoogle"`
	Reason          string `json:"reason,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
	EventID         string `json:"event_id,omitempty"`
	Scope           string `json:"scope,omitempty"`
}

// Patch edits one of the caller's events. Events created from reminders are
// refused with ErrEventBlocked.
func (e *Events) Patch(ctx context.Context, req PatchRequest) (PatchResult, error) {
	if req.Phone == "" || req.EventID == "" {
		return PatchResult{}, ErrMissingFields
	}
	hasTimeChange := req.StartAt != "" || req.EndAt != ""
	if hasTimeChange && (req.StartAt == "" || req.EndAt == "") {
		return PatchResult{}, ErrMissingStartEndPair
	}
	if req.Summary == "" && !hasTimeChange {
		return PatchResult{}, ErrMissingUpdateFields
	}

	s, err := e.activeSession(ctx, req.Phone)
	if err != nil {
		return PatchResult{}, err
	}

	var blocked bool
	res, err := sequencer.Run(ctx, e.seq, s.key(), WriteInterval, func(ctx context.Context) (PatchResult, error) {
		target, scope, found, err := e.resolveTarget(ctx, s, req.EventID, req.Scope)
		if err != nil {
			if errors.Is(err, ErrEventBlocked) {
				blocked = true
				return PatchResult{}, nil
			}
			return PatchResult{}, err
		}
		if !found {
			return PatchResult{OK: true, Reason: ReasonNotFound}, nil
		}

		patch := calendar.EventPatch{
			Summary:  req.Summary,
			TimeZone: firstNonEmpty(req.TimeZone, DefaultTimeZone),
		}
		if hasTimeChange {
			patch.Start = calendar.NormalizeRFC3339(req.StartAt)
			patch.End = calendar.NormalizeRFC3339(req.EndAt)
		}

		_, err = invoke(ctx, &e.core, s, "events.patch", func(ctx context.Context, api calendar.API) (*calendar.Event, error) {
			return api.PatchEvent(ctx, s.calendarID(), target, patch)
		})
		if err != nil {
			return PatchResult{}, err
		}

		return PatchResult{
			OK:              true,
			UpdatedOnGoogle: true,
			CalendarID:      s.calendarID(),
			EventID:         target,
			Scope:           scope,
		}, nil
	})
	if err != nil {
		return PatchResult{}, err
	}
	if blocked {
		return PatchResult{}, ErrEventBlocked
	}
	return res, nil
}

// DeleteRequest removes an event.
type DeleteRequest struct {
	Phone   string `json:"phone"`
	EventID string `json:"event_id"`
	Scope   string `json:"scope,omitempty"`
}

// DeleteResult reports whether the remote event was removed.
type DeleteResult struct {
	OK              bool   `json:"ok"`
	DeletedOnGoogle bool   `json:"deletedOnGoogle"`
	Reason          string `json:"reason,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
	EventID         string `json:"event_id,omitempty"`
	Scope           string `json:"scope,omitempty"`
}

// Delete removes one of the caller's events. Events created from reminders
// are refused with ErrEventBlocked.
func (e *Events) Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	if req.Phone == "" || req.EventID == "" {
		return DeleteResult{}, ErrMissingFields
	}

	s, err := e.activeSession(ctx, req.Phone)
	if err != nil {
		return DeleteResult{}, err
	}

	var blocked bool
	res, err := sequencer.Run(ctx, e.seq, s.key(), WriteInterval, func(ctx context.Context) (DeleteResult, error) {
		target, scope, found, err := e.resolveTarget(ctx, s, req.EventID, req.Scope)
		if err != nil {
			if errors.Is(err, ErrEventBlocked) {
				blocked = true
				return DeleteResult{}, nil
			}
			return DeleteResult{}, err
		}
		if !found {
			return DeleteResult{OK: true, Reason: ReasonNotFound}, nil
		}

		_, err = invoke(ctx, &e.core, s, "events.delete", func(ctx context.Context, api calendar.API) (struct{}, error) {
			return struct{}{}, api.DeleteEvent(ctx, s.calendarID(), target)
		})
		if err != nil {
			return DeleteResult{}, err
		}

		return DeleteResult{
			OK:              true,
			DeletedOnGoogle: true,
			CalendarID:      s.calendarID(),
			EventID:         target,
			Scope:           scope,
		}, nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	if blocked {
		return DeleteResult{}, ErrEventBlocked
	}
	return res, nil
}

// resolveTarget fetches eventID and returns the id to act on for scope.
// found is false when the event does not exist.
func (e *Events) resolveTarget(ctx context.Context, s *accountSession, eventID, scope string) (target, finalScope string, found bool, err error) {
	ev, err := invoke(ctx, &e.core, s, "events.get", func(ctx context.Context, api calendar.API) (*calendar.Event, error) {
		return api.GetEvent(ctx, s.calendarID(), eventID)
	})
	if calendar.IsNotFound(err) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}

	if calendar.IsManagedEvent(ev) {
		e.logger.InfoContext(ctx, "refusing to edit reminder event",
			logging.Account(s.account.ID),
			logging.Operation("events.resolve"))
		return "", "", false, ErrEventBlocked
	}

	finalScope = ScopeThis
	target = eventID
	if scope == ScopeSeries {
		finalScope = ScopeSeries
		if ev.RecurringEventID != "" {
			target = ev.RecurringEventID
		}
	}
	return target, finalScope, true, nil
}
