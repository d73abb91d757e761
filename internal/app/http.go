package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"dealroom/api/internal/diff"
	"dealroom/api/internal/document"
	"dealroom/api/internal/logger"
	"dealroom/api/internal/search"
	"dealroom/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	limiter    *rate.Limiter
}

// NewHTTPServer wires the API routes. A nil limiter disables rate limiting.
func NewHTTPServer(service *Service, corsOrigin string, limiter *rate.Limiter) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, limiter: limiter}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withMiddleware)
	r.Use(s.rateLimit)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/ready", s.handleReady)

		r.Post("/offers", s.handleCreateOffer)
		r.Route("/offers/{id}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.partiesOnly)
				r.Get("/", s.handleGetOffer)
				r.Get("/chain", s.handleOfferChain)
				r.Get("/compare", s.handleCompare)
				r.Get("/countdown", s.handleCountdown)
				r.Get("/history", s.handleHistory)
				r.Get("/history/{hash}", s.handleSnapshot)
				r.Get("/transaction", s.handleOfferTransaction)
			})
			r.Post("/accept", s.handleAccept)
			r.Post("/reject", s.handleReject)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/counter", s.handleCounter)
			r.Post("/transaction", s.handleEnsureTransaction)
		})
		r.Get("/properties/{id}/offers", s.handlePropertyOffers)
		r.Get("/buyers/{id}/offers", s.handleBuyerOffers)
		r.Post("/diff", s.handleDiff)
		r.Get("/search", s.handleSearch)

		r.Route("/transactions/{id}", func(r chi.Router) {
			r.Get("/", s.handleTransaction)
			r.Put("/steps/{stepId}", s.handleStep)
			r.Put("/vendors/{role}", s.handleVendor)
		})
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var input CreateOfferInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	offer, err := s.service.CreateOffer(r.Context(), input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.offerPayload(offer))
}

func (s *HTTPServer) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := s.service.GetOfferByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.offerPayload(offer))
}

func (s *HTTPServer) handleOfferChain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.service.GetOfferChain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": chain})
}

func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.CompareWithPrevious(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCountdown(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Countdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	entries, err := s.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.SnapshotAt(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleOfferTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.TransactionViewByOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAccept(w http.ResponseWriter, r *http.Request) {
	var opts AcceptOptions
	if err := decodeBody(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, err := s.service.AcceptOffer(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	offer, err := s.service.RejectOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.offerPayload(offer))
}

func (s *HTTPServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	offer, err := s.service.WithdrawOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.offerPayload(offer))
}

func (s *HTTPServer) handleCounter(w http.ResponseWriter, r *http.Request) {
	var input CounterOfferInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	actorID := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	if actorID == "" {
		actorID = input.ActorID
	}
	offer, err := s.service.CounterOffer(r.Context(), chi.URLParam(r, "id"), input, actorID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.offerPayload(offer))
}

func (s *HTTPServer) handleEnsureTransaction(w http.ResponseWriter, r *http.Request) {
	id, created, err := s.service.EnsureTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"transactionId": id, "created": created})
}

func (s *HTTPServer) handlePropertyOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.service.GetOffersByProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (s *HTTPServer) handleBuyerOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.service.GetOffersByBuyer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (s *HTTPServer) handleDiff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Original document.Document `json:"original"`
		Current  document.Document `json:"current"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": diff.Diff(body.Original, body.Current)})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	query := r.URL.Query()
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{
		Text:             strings.TrimSpace(query.Get("q")),
		FilterPropertyID: query.Get("propertyId"),
		FilterStatus:     query.Get("status"),
		Limit:            limit,
		Offset:           offset,
	}))
}

func (s *HTTPServer) handleTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.TransactionView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleStep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if body.Completed == nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "completed is required", nil)
		return
	}
	txnID := chi.URLParam(r, "id")
	if _, err := s.service.UpdateStepComplete(r.Context(), txnID, chi.URLParam(r, "stepId"), *body.Completed); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeTransaction(w, r, txnID)
}

func (s *HTTPServer) handleVendor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VendorID *string `json:"vendorId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	txnID := chi.URLParam(r, "id")
	if _, err := s.service.SetAssignedVendor(r.Context(), txnID, chi.URLParam(r, "role"), body.VendorID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeTransaction(w, r, txnID)
}

func (s *HTTPServer) writeTransaction(w http.ResponseWriter, r *http.Request, txnID string) {
	view, err := s.service.TransactionView(r.Context(), txnID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type offerResponse struct {
	store.Offer
	Expired bool `json:"expired"`
}

// offerPayload adds the advisory expiration flag to an offer.
func (s *HTTPServer) offerPayload(offer store.Offer) offerResponse {
	return offerResponse{Offer: offer, Expired: s.service.IsOfferExpired(offer, s.service.now())}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		log := logger.FromContext(r.Context()).With("request_id", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx, log)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(writer, r)

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

// partiesOnly rejects offer reads by an actor who is neither the buyer nor
// the seller. Requests without X-Actor-ID pass through.
func (s *HTTPServer) partiesOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.service.AuthorizeRead(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Actor-ID")); err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			logger.FromContext(r.Context()).Warn("rate limit exceeded", "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Actor-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// decodeBody decodes an optional JSON body. An empty body leaves target
// untouched.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
