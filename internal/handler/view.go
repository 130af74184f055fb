package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"biolink/internal/httputil"
	"biolink/internal/model"
	"biolink/internal/service"
)

type ViewHandler struct {
	viewService *service.ViewService
	logger      zerolog.Logger
}

func NewViewHandler(viewService *service.ViewService, logger zerolog.Logger) *ViewHandler {
	return &ViewHandler{
		viewService: viewService,
		logger:      logger.With().Str("component", "view_handler").Logger(),
	}
}

// RecordView handles POST /profiles/{ownerId}/views
func (h *ViewHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	res, err := h.viewService.RecordView(r.Context(), chi.URLParam(r, "ownerId"), visitorFromRequest(r))
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// SiteStats handles GET /site/stats
func (h *ViewHandler) SiteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.viewService.SiteStats(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// visitorFromRequest expects chi's RealIP middleware to have resolved RemoteAddr.
func visitorFromRequest(r *http.Request) model.Visitor {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return model.Visitor{IP: ip, UserAgent: r.UserAgent()}
}
