package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/model"
	"github.com/unclebandit/mailinglist/internal/notice"
)

// PendingCounter reports queue depth per operation.
type PendingCounter interface {
	Pending(ctx context.Context, tenantID int64) (map[model.OperationKind]int, error)
}

type ListController struct {
	Gateway    list.Gateway
	Classifier *notice.Classifier
	Fields     model.FieldMap
	Queue      PendingCounter
	TenantID   int64
	Log        *slog.Logger
}

// OperationResponse is returned by every list mutation. The HTTP status is
// 200 whenever the request was understood; the outcome lives in Code.
type OperationResponse struct {
	Code   model.ResultCode `json:"code"`
	Notice *notice.Notice   `json:"notice"`
}

type subscribeRequest struct {
	Email       string            `json:"email"`
	Info        map[string]string `json:"info"`
	SendWelcome bool              `json:"send_welcome"`
}

type batchSubscribeRequest struct {
	Subscribers []model.Subscriber `json:"subscribers"`
	SendWelcome bool               `json:"send_welcome"`
}

type batchUnsubscribeRequest struct {
	Emails []string `json:"emails"`
}

func (c *ListController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.Subscribe(r.Context(), body.Email, body.Info, body.SendWelcome, c.Fields)
	c.respond(w, r, code, model.OpSubscribe)
}

func (c *ListController) BatchSubscribe(w http.ResponseWriter, r *http.Request) {
	var body batchSubscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.BatchSubscribe(r.Context(), body.Subscribers, body.SendWelcome, c.Fields)
	c.respond(w, r, code, model.OpSubscribe)
}

func (c *ListController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.Unsubscribe(r.Context(), body.Email)
	c.respond(w, r, code, model.OpUnsubscribe)
}

func (c *ListController) BatchUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var body batchUnsubscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.BatchUnsubscribe(r.Context(), body.Emails)
	c.respond(w, r, code, model.OpUnsubscribe)
}

func (c *ListController) Update(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.Update(r.Context(), body.Email, body.Info, c.Fields)
	c.respond(w, r, code, model.OpUpdate)
}

func (c *ListController) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var body batchSubscribeRequest
	if !decode(w, r, &body) {
		return
	}
	code := c.Gateway.BatchUpdate(r.Context(), body.Subscribers, c.Fields)
	c.respond(w, r, code, model.OpUpdate)
}

// Member answers whether an address is currently subscribed.
func (c *ListController) Member(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	member, err := c.Gateway.IsMember(r.Context(), email)
	if errors.Is(err, list.ErrProviderUnavailable) {
		http.Error(w, "mailing list provider unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		c.Log.ErrorContext(r.Context(), "membership lookup failed", slog.String("error", err.Error()))
		http.Error(w, "failed to look up member", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":  email,
		"member": member,
	})
}

// QueueStats lists pending queued operations for the tenant.
func (c *ListController) QueueStats(w http.ResponseWriter, r *http.Request) {
	pending, err := c.Queue.Pending(r.Context(), c.TenantID)
	if err != nil {
		c.Log.ErrorContext(r.Context(), "failed to count queue", slog.String("error", err.Error()))
		http.Error(w, "failed to count queue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": c.TenantID,
		"available": c.Gateway.IsAvailable(r.Context()),
		"pending":   pending,
	})
}

func (c *ListController) respond(w http.ResponseWriter, r *http.Request, code model.ResultCode, kind model.OperationKind) {
	c.Log.InfoContext(r.Context(), "list operation",
		slog.String("operation", string(kind)),
		slog.String("code", code.String()),
	)
	writeJSON(w, http.StatusOK, OperationResponse{
		Code:   code,
		Notice: c.Classifier.Classify(code, kind),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
