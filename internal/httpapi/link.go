package httpapi

import (
	"net/http"
	"net/url"

	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/pages"
	"github.com/teemow/calendarlink/internal/service"
)

type linkStartRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleLinkStart(w http.ResponseWriter, r *http.Request) {
	var req linkStartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": codeInvalidJSON})
		return
	}

	res, err := s.sc.Linking().Start(r.Context(), req.Phone, s.baseURL(r))
	if err != nil {
		if service.CodeOf(err) == service.CodePhoneRequired {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(service.CodePhoneRequired)})
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to start calendar link", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": codeInternalError})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLinkBounce serves a page that forwards to the redeem URL. Chat
// previews fetch links they see, so redeeming happens one hop later.
func (s *Server) handleLinkBounce(w http.ResponseWriter, r *http.Request) {
	htmlHeaders(w)
	noStore(w)

	goURL := "/calendar/link/" + url.PathEscape(r.PathValue("code")) + "/go"
	if err := s.pages.Bounce(w, goURL); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", logging.Err(err))
	}
}

func (s *Server) handleLinkGo(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.sc.Linking().Redeem(r.Context(), r.PathValue("code"))
	if err != nil {
		switch service.CodeOf(err) {
		case service.CodeLinkUnavailable:
			s.errorPage(w, r, http.StatusInternalServerError, "Serviço indisponível", "Links de conexão não estão configurados.")
		case service.CodeLinkExpired:
			s.errorPage(w, r, http.StatusBadRequest, "Link expirou",
				"Esse link de conexão expirou. Volte no WhatsApp e peça para eu gerar um novo.")
		default:
			s.logger.ErrorContext(r.Context(), "failed to redeem calendar link", logging.Err(err))
			s.errorPage(w, r, http.StatusInternalServerError, "Serviço indisponível", "Tente novamente em alguns instantes.")
		}
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") != "" {
		s.errorPage(w, r, http.StatusBadRequest, "Conexão cancelada",
			"A autorização no Google não foi concluída. Volte no WhatsApp e peça um novo link.")
		return
	}

	linked, err := s.sc.Linking().Complete(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		switch service.CodeOf(err) {
		case service.CodeInvalidState, service.CodeMissingCode, service.CodeOAuthFailed:
			// One page for every token failure, so callers cannot tell them apart.
			s.errorPage(w, r, http.StatusBadRequest, "Não foi possível conectar",
				"Esse link é inválido ou expirou. Volte no WhatsApp e peça para eu gerar um novo.")
		default:
			s.logger.ErrorContext(r.Context(), "failed to complete calendar link", logging.Err(err))
			s.errorPage(w, r, http.StatusInternalServerError, "Erro ao conectar",
				"Tivemos um problema ao salvar sua conexão. Tente novamente em alguns instantes.")
		}
		return
	}

	htmlHeaders(w)
	noStore(w)
	err = s.pages.Success(w, pages.Success{
		Title:      "Google Agenda conectada!",
		Subtitle:   "Número " + pages.FormatPhoneBR(linked.Phone),
		Details:    "Conta Google: " + linked.Email,
		ReturnLink: pages.WhatsAppReturnLink(s.cfg.WhatsAppNumber),
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", logging.Err(err))
	}
}

func (s *Server) errorPage(w http.ResponseWriter, r *http.Request, status int, title, details string) {
	htmlHeaders(w)
	noStore(w)
	w.WriteHeader(status)
	if err := s.pages.Error(w, title, details); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", logging.Err(err))
	}
}
