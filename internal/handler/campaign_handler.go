package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/mailinglist/internal/campaign"
	appErrors "github.com/unclebandit/mailinglist/internal/errors"
	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service *service.CampaignService
	Log     *slog.Logger
}

func NewCampaignHandler(svc *service.CampaignService, log *slog.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Log: log}
}

// Content returns one rendered format. format defaults to xhtml.
func (h *CampaignHandler) Content(w http.ResponseWriter, r *http.Request) {
	shortname := chi.URLParam(r, "shortname")

	name := r.URL.Query().Get("format")
	if name == "" {
		name = campaign.FormatXHTML.String()
	}
	format, err := campaign.ParseFormat(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.Service.Content(r.Context(), shortname, format)
	if err != nil {
		h.fail(w, r, shortname, err)
		return
	}

	if format == campaign.FormatXHTML {
		w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Write([]byte(out))
}

// Preview renders both formats and metadata as JSON.
func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	shortname := chi.URLParam(r, "shortname")

	content, err := h.Service.Preview(r.Context(), shortname)
	if err != nil {
		h.fail(w, r, shortname, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(content)
}

func (h *CampaignHandler) Save(w http.ResponseWriter, r *http.Request) {
	shortname := chi.URLParam(r, "shortname")

	content, err := h.Service.Save(r.Context(), shortname)
	if err != nil {
		h.fail(w, r, shortname, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"shortname":     content.Shortname,
		"title":         content.Title,
		"analytics_key": content.AnalyticsKey,
		"status":        "saved",
	})
}

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	shortname := chi.URLParam(r, "shortname")

	if err := h.Service.Delete(r.Context(), shortname); err != nil {
		h.fail(w, r, shortname, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) fail(w http.ResponseWriter, r *http.Request, shortname string, err error) {
	var invalid *campaign.InvalidXHTMLError

	switch {
	case appErrors.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, campaign.ErrUnknownFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &invalid), errors.Is(err, campaign.ErrInvalidUTF8):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, list.ErrProviderUnavailable):
		http.Error(w, "mailing list provider unavailable", http.StatusServiceUnavailable)
	default:
		h.Log.ErrorContext(r.Context(), "campaign request failed",
			slog.String("campaign", shortname),
			slog.String("error", err.Error()),
		)
		http.Error(w, "failed to process campaign", http.StatusInternalServerError)
	}
}
