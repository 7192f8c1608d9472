package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/service"
)

type quoteService interface {
	CreateQuote(ctx context.Context, req service.CreateQuoteRequest) (*quote.Quote, error)
	GetStatus(ctx context.Context, quoteID string) (quote.Status, error)
	GetLink(ctx context.Context, req service.LinkRequest) ([]service.Link, error)
	GetHistory(ctx context.Context, req service.HistoryRequest) ([]quote.Quote, error)
	Settle(ctx context.Context, req service.UploadRequest) error
}

type handlers struct {
	svc quoteService
	log *zap.SugaredLogger
}

type getQuoteRequest struct {
	Type        string `json:"type"`
	UserAddress string `json:"userAddress"`
	Files       []struct {
		Length json.Number `json:"length"`
	} `json:"files"`
	Payment *struct {
		ChainID      json.Number `json:"chainId"`
		TokenAddress string      `json:"tokenAddress"`
	} `json:"payment"`
}

type quoteResponse struct {
	QuoteID        string       `json:"quoteId"`
	Status         quote.Status `json:"status"`
	Created        int64        `json:"created"`
	ChainID        int64        `json:"chainId"`
	TokenAddress   string       `json:"tokenAddress"`
	UserAddress    string       `json:"userAddress"`
	TokenAmount    string       `json:"tokenAmount"`
	ApproveAddress string       `json:"approveAddress"`
	Files          []int64      `json:"files"`
}

func newQuoteResponse(q *quote.Quote) quoteResponse {
	return quoteResponse{
		QuoteID:        q.ID,
		Status:         q.Status,
		Created:        q.Created.UnixMilli(),
		ChainID:        q.ChainID,
		TokenAddress:   q.TokenAddress,
		UserAddress:    q.UserAddress,
		TokenAmount:    q.TokenAmount,
		ApproveAddress: q.ApproveAddress,
		Files:          q.Files,
	}
}

// handleGetQuote prices a set of files and issues a quote.
func (h *handlers) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	var body getQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Content can not be empty!", err)
		return
	}
	if body.Files == nil {
		h.writeError(w, r, http.StatusBadRequest, "Missing files field.", nil)
		return
	}
	if body.Payment == nil {
		h.writeError(w, r, http.StatusBadRequest, "Missing payment field.", nil)
		return
	}

	req := service.CreateQuoteRequest{
		Type:         body.Type,
		UserAddress:  body.UserAddress,
		TokenAddress: body.Payment.TokenAddress,
	}
	for _, f := range body.Files {
		length, err := f.Length.Int64()
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "Invalid files length.", err)
			return
		}
		req.Files = append(req.Files, length)
	}
	chainID, err := body.Payment.ChainID.Int64()
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid chainId.", err)
		return
	}
	req.ChainID = chainID

	q, err := h.svc.CreateQuote(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

// handleGetStatus reports the status of a quote.
func (h *handlers) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.GetStatus(r.Context(), r.URL.Query().Get("quoteId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

// handleGetLink returns storage receipts for a completed quote.
func (h *handlers) handleGetLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	links, err := h.svc.GetLink(r.Context(), service.LinkRequest{
		QuoteID:   q.Get("quoteId"),
		Nonce:     q.Get("nonce"),
		Signature: q.Get("signature"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	linkCounter.Inc()
	h.writeJSON(w, http.StatusOK, links)
}

// handleGetHistory returns the caller's recent quotes.
func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quotes, err := h.svc.GetHistory(r.Context(), service.HistoryRequest{
		UserAddress: q.Get("userAddress"),
		Nonce:       q.Get("nonce"),
		Signature:   q.Get("signature"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		resp = append(resp, newQuoteResponse(&quotes[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type uploadRequest struct {
	QuoteID   string      `json:"quoteId"`
	Files     []string    `json:"files"`
	Nonce     json.Number `json:"nonce"`
	Signature string      `json:"signature"`
}

// handleUpload starts settlement of a quote. It returns once the quote has
// been accepted for processing.
func (h *handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	var body uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Content can not be empty!", err)
		return
	}

	err := h.svc.Settle(r.Context(), service.UploadRequest{
		QuoteID:   body.QuoteID,
		Files:     body.Files,
		Nonce:     body.Nonce.String(),
		Signature: body.Signature,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	uploadCounter.Inc()
	h.writeJSON(w, http.StatusOK, nil)
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		h.writeError(w, r, svcErr.Code(), svcErr.Message, svcErr.Err)
		return
	}
	h.writeError(w, r, http.StatusInternalServerError, "Internal error.", err)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, code int, msg string, err error) {
	if code >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", r.URL.Path, "status", code, "message", msg, "error", err)
	} else {
		h.log.Infow("request rejected", "path", r.URL.Path, "status", code, "message", msg, "error", err)
	}
	h.writeJSON(w, code, errorResponse{Status: code, Message: msg})
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, v any) {
	jsonb, err := json.Marshal(v)
	if err != nil {
		h.log.Errorw("failed to marshal resp", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonb)
}
