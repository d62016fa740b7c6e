package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/calendarlink/internal/instrumentation"
)

// DefaultCalendarID is the calendar used when an account has none recorded.
const DefaultCalendarID = "primary"

// ErrPatchTimePair is returned when a patch sets only one of start and end.
var ErrPatchTimePair = errors.New("start and end must be changed together")

// API is the calendar surface used by the service layer.
type API interface {
	ListEvents(ctx context.Context, calendarID string, q ListQuery) (*EventPage, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error)
	CreateEvent(ctx context.Context, calendarID string, in EventInput) (*Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, p EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	metrics  *instrumentation.Metrics
	endpoint string
}

// WithMetrics records each API call.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithEndpoint overrides the Calendar API base URL, for tests.
func WithEndpoint(url string) Option {
	return func(o *clientOptions) { o.endpoint = url }
}

// NewClient creates a Calendar client that authenticates through httpClient.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, metrics: o.metrics}, nil
}

// observe wraps one API call in a span and records its outcome. eventID may
// be empty for calls that do not address a single event.
func (c *Client) observe(ctx context.Context, operation, eventID string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation,
		instrumentation.NewSpanAttributeBuilder().WithResource("event", eventID).Build()...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
	return err
}

// ListEvents lists single events in a time range, ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, q ListQuery) (*EventPage, error) {
	call := c.svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(q.IncludeCancelled)

	if q.TimeMin != "" {
		call = call.TimeMin(q.TimeMin)
	}
	if q.TimeMax != "" {
		call = call.TimeMax(q.TimeMax)
	}
	if q.TimeZone != "" {
		call = call.TimeZone(q.TimeZone)
	}
	if q.Query != "" {
		call = call.Q(q.Query)
	}
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	var events *calendar.Events
	err := c.observe(ctx, "list", "", func(ctx context.Context) error {
		var err error
		events, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	page := &EventPage{Items: make([]Event, 0, len(events.Items)), NextPageToken: events.NextPageToken}
	for _, ev := range events.Items {
		page.Items = append(page.Items, toEvent(ev))
	}
	return page, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	var ev *calendar.Event
	err := c.observe(ctx, "get", eventID, func(ctx context.Context) error {
		var err error
		ev, err = c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	out := toEvent(ev)
	return &out, nil
}

// CreateEvent creates a new timed calendar event
func (c *Client) CreateEvent(ctx context.Context, calendarID string, in EventInput) (*Event, error) {
	body := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       timed(in.Start, in.TimeZone),
		End:         timed(in.End, in.TimeZone),
	}

	var created *calendar.Event
	err := c.observe(ctx, "insert", "", func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(calendarID, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	out := toEvent(created)
	return &out, nil
}

// PatchEvent changes the summary and/or time of an event
func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, p EventPatch) (*Event, error) {
	if (p.Start == "") != (p.End == "") {
		return nil, ErrPatchTimePair
	}

	body := &calendar.Event{Summary: p.Summary}
	if p.Start != "" {
		body.Start = timed(p.Start, p.TimeZone)
		body.End = timed(p.End, p.TimeZone)
	}

	var patched *calendar.Event
	err := c.observe(ctx, "patch", eventID, func(ctx context.Context) error {
		var err error
		patched, err = c.svc.Events.Patch(calendarID, eventID, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to patch event: %w", err)
	}

	out := toEvent(patched)
	return &out, nil
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.observe(ctx, "delete", eventID, func(ctx context.Context) error {
		return c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
