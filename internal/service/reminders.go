package service

import (
	"context"
	"time"

	"github.com/teemow/calendarlink/internal/calendar"
	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/sequencer"
	"github.com/teemow/calendarlink/internal/store"
)

// Reminders mirrors reminders into linked calendars as short events.
type Reminders struct {
	core
}

// NewReminders creates the reminder operations.
func NewReminders(cfg Config) *Reminders {
	return &Reminders{core: newCore(cfg)}
}

// CreateReminderRequest describes a reminder to mirror.
type CreateReminderRequest struct {
	Phone      string `json:"phone"`
	Content    string `json:"content"`
	DueAt      string `json:"due_at"`
	TimeZone   string `json:"tz,omitempty"`
	ReminderID string `json:"reminder_id"`
}

// CreateReminderResult identifies the stored link and the created event.
type CreateReminderResult struct {
	OK               bool   `json:"ok"`
	GoogleReminderID string `json:"google_reminder_id"`
	GoogleEventID    string `json:"google_event_id"`
	CalendarID       string `json:"calendar_id"`
}

// Create adds a ReminderDuration-minute event for the reminder and records
// the link between them.
func (r *Reminders) Create(ctx context.Context, req CreateReminderRequest) (CreateReminderResult, error) {
	if req.Phone == "" || req.Content == "" || req.DueAt == "" || req.ReminderID == "" {
		return CreateReminderResult{}, ErrMissingFields
	}

	tz := firstNonEmpty(req.TimeZone, DefaultTimeZone)
	start := calendar.NormalizeRFC3339(req.DueAt)

	s, err := r.activeSession(ctx, req.Phone)
	if err != nil {
		return CreateReminderResult{}, err
	}

	created, err := sequencer.Run(ctx, r.seq, s.key(), WriteInterval, func(ctx context.Context) (*calendar.Event, error) {
		return invoke(ctx, &r.core, s, "reminders.create", func(ctx context.Context, api calendar.API) (*calendar.Event, error) {
			return api.CreateEvent(ctx, s.calendarID(), calendar.EventInput{
				Summary:     req.Content,
				Description: calendar.ManagedDescription,
				Start:       start,
				End:         calendar.AddMinutes(start, ReminderDuration),
				TimeZone:    tz,
			})
		})
	})
	if err != nil {
		return CreateReminderResult{}, err
	}
	if created == nil || created.ID == "" {
		return CreateReminderResult{}, ErrNoEventID
	}

	id, err := r.reminders.InsertReminderLink(ctx, store.ReminderLink{
		Phone:             req.Phone,
		CalendarAccountID: s.account.ID,
		ReminderID:        req.ReminderID,
		Content:           req.Content,
		DueAt:             req.DueAt,
		TimeZone:          tz,
		GoogleEventID:     created.ID,
	})
	if err != nil {
		return CreateReminderResult{}, err
	}

	return CreateReminderResult{
		OK:               true,
		GoogleReminderID: id,
		GoogleEventID:    created.ID,
		CalendarID:       s.calendarID(),
	}, nil
}

// UpdateReminderRequest changes a mirrored reminder. ID is accepted as an
// alias of ReminderID for older callers.
type UpdateReminderRequest struct {
	Phone      string `json:"phone"`
	ID         string `json:"id,omitempty"`
	ReminderID string `json:"reminder_id,omitempty"`
	Content    string `json:"content,omitempty"`
	DueAt      string `json:"due_at,omitempty"`
	TimeZone   string `json:"tz,omitempty"`
}

// UpdateReminderResult reports where the change was applied.
type UpdateReminderResult struct {
	OK              bool   `json:"ok"`
	UpdatedLocally  bool   `json:"updatedLocally"`
	UpdatedOnGoogle bool   `json:"updatedOnGoogle"`
	Reason          string `json:"reason,omitempty"`
	GoogleEventID   string `json:"google_event_id,omitempty"`
	CalendarID      string `json:"calendar_id,omitempty"`
}

// Update applies new content, due time or zone to the calendar event and
// then to the stored reminder.
func (r *Reminders) Update(ctx context.Context, req UpdateReminderRequest) (UpdateReminderResult, error) {
	reminderID := firstNonEmpty(req.ReminderID, req.ID)
	if req.Phone == "" || reminderID == "" {
		return UpdateReminderResult{}, ErrMissingFields
	}
	if req.Content == "" && req.DueAt == "" && req.TimeZone == "" {
		return UpdateReminderResult{}, ErrMissingUpdateFields
	}

	row, err := r.reminders.FindReminder(ctx, req.Phone, reminderID)
	if err != nil {
		return UpdateReminderResult{}, err
	}
	if row == nil {
		return UpdateReminderResult{OK: true, Reason: ReasonNotFound}, nil
	}

	content := firstNonEmpty(req.Content, row.Content)
	dueAt := firstNonEmpty(req.DueAt, formatDue(row.DueAt))
	tz := firstNonEmpty(req.TimeZone, row.TimeZone, DefaultTimeZone)
	calendarID := firstNonEmpty(row.Account.CalendarID, calendar.DefaultCalendarID)

	var updatedOnGoogle bool
	if row.GoogleEventID != "" && row.Account.HasCredentials() {
		s, err := r.open(ctx, &row.Account)
		if err != nil {
			return UpdateReminderResult{}, wrap(CodeGoogleUpdate, err)
		}

		start := calendar.NormalizeRFC3339(dueAt)
		err = r.seq.Do(ctx, s.key(), WriteInterval, func(ctx context.Context) error {
			_, err := invoke(ctx, &r.core, s, "reminders.update", func(ctx context.Context, api calendar.API) (*calendar.Event, error) {
				return api.PatchEvent(ctx, calendarID, row.GoogleEventID, calendar.EventPatch{
					Summary:  content,
					Start:    start,
					End:      calendar.AddMinutes(start, ReminderDuration),
					TimeZone: tz,
				})
			})
			return err
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to update reminder event",
				logging.Account(row.Account.ID),
				logging.Err(err))
			return UpdateReminderResult{}, wrap(CodeGoogleUpdate, err)
		}
		updatedOnGoogle = true
	}

	err = r.reminders.UpdateReminder(ctx, store.ReminderUpdate{
		ID:       row.ID,
		Phone:    req.Phone,
		Content:  content,
		DueAt:    dueAt,
		TimeZone: tz,
	})
	if err != nil {
		return UpdateReminderResult{}, err
	}

	return UpdateReminderResult{
		OK:              true,
		UpdatedLocally:  true,
		UpdatedOnGoogle: updatedOnGoogle,
		GoogleEventID:   row.GoogleEventID,
		CalendarID:      calendarID,
	}, nil
}

// DeleteReminderRequest removes a mirrored reminder.
type DeleteReminderRequest struct {
	Phone      string `json:"phone"`
	ID         string `json:"id,omitempty"`
	ReminderID string `json:"reminder_id,omitempty"`
}

// DeleteReminderResult reports where the reminder was removed.
type DeleteReminderResult struct {
	OK              bool   `json:"ok"`
	DeletedLocally  bool   `json:"deletedLocally"`
	DeletedOnGoogle bool   `json:"deletedOnGoogle"`
	Reason          string `json:"reason,omitempty"`
}

// Delete removes the calendar event and then the stored reminder.
func (r *Reminders) Delete(ctx context.Context, req DeleteReminderRequest) (DeleteReminderResult, error) {
	reminderID := firstNonEmpty(req.ReminderID, req.ID)
	if req.Phone == "" || reminderID == "" {
		return DeleteReminderResult{}, ErrMissingFields
	}

	row, err := r.reminders.FindReminder(ctx, req.Phone, reminderID)
	if err != nil {
		return DeleteReminderResult{}, err
	}
	if row == nil {
		return DeleteReminderResult{OK: true, Reason: ReasonNotFound}, nil
	}

	calendarID := firstNonEmpty(row.Account.CalendarID, calendar.DefaultCalendarID)

	var deletedOnGoogle bool
	if row.GoogleEventID != "" && row.Account.HasCredentials() {
		s, err := r.open(ctx, &row.Account)
		if err != nil {
			return DeleteReminderResult{}, wrap(CodeGoogleDelete, err)
		}

		err = r.seq.Do(ctx, s.key(), WriteInterval, func(ctx context.Context) error {
			_, err := invoke(ctx, &r.core, s, "reminders.delete", func(ctx context.Context, api calendar.API) (struct{}, error) {
				return struct{}{}, api.DeleteEvent(ctx, calendarID, row.GoogleEventID)
			})
			return err
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to delete reminder event",
				logging.Account(row.Account.ID),
				logging.Err(err))
			return DeleteReminderResult{}, wrap(CodeGoogleDelete, err)
		}
		deletedOnGoogle = true
	}

	if err := r.reminders.DeleteReminder(ctx, row.ID, req.Phone); err != nil {
		return DeleteReminderResult{}, err
	}

	return DeleteReminderResult{OK: true, DeletedLocally: true, DeletedOnGoogle: deletedOnGoogle}, nil
}

func formatDue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
