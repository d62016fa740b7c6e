package httpapi

import (
	"context"
	"net/http"

	"github.com/teemow/calendarlink/internal/logging"
)

// serveOperation decodes a Req, runs call and writes its result or the
// mapped failure.
func serveOperation[Req, Res any](s *Server, w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, Req) (Res, error)) {
	var req Req
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON)
		return
	}

	res, err := call(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "operation failed",
				logging.Operation(operation),
				logging.Status(code),
				logging.Err(err))
		}
		writeError(w, status, code)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "events.list", s.sc.Events().List)
}

func (s *Server) handleEventsPatch(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "events.patch", s.sc.Events().Patch)
}

func (s *Server) handleEventsDelete(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "events.delete", s.sc.Events().Delete)
}

func (s *Server) handleReminderCreate(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "reminders.create", s.sc.Reminders().Create)
}

func (s *Server) handleReminderUpdate(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "reminders.update", s.sc.Reminders().Update)
}

func (s *Server) handleReminderDelete(w http.ResponseWriter, r *http.Request) {
	serveOperation(s, w, r, "reminders.delete", s.sc.Reminders().Delete)
}
