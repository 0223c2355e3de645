package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
	"course-marketplace/internal/usecase"
)

// maxWebhookBody caps how much of a webhook request we are willing to read.
const maxWebhookBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondDomainError maps domain sentinels onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		respondError(w, http.StatusConflict, "Already enrolled in this course")
	case errors.Is(err, domain.ErrCourseDeleted):
		respondError(w, http.StatusGone, "Course is no longer available")
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		respondError(w, http.StatusConflict, "Payment already confirmed")
	case errors.Is(err, domain.ErrPaymentExpired):
		respondError(w, http.StatusBadRequest, "Payment window has expired")
	case errors.Is(err, domain.ErrInvoiceUnavailable):
		respondError(w, http.StatusNotFound, "Invoice not available")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "Payment provider unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// ===== Checkout =====

type checkoutRequest struct {
	CourseID string `json:"courseId"`
	Method   string `json:"method"`
}

type checkoutResponse struct {
	PaymentID     string               `json:"paymentId,omitempty"`
	TransactionID string               `json:"transactionId,omitempty"`
	CheckoutURL   string               `json:"checkoutUrl,omitempty"`
	QRImage       string               `json:"qrImage,omitempty"`
	QRContent     string               `json:"qrContent,omitempty"`
	Bank          *adapter.BankDetails `json:"bank,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	EnrollmentID  string               `json:"enrollmentId,omitempty"`
	Free          bool                 `json:"free,omitempty"`
}

func toCheckoutResponse(res *usecase.CheckoutResult) checkoutResponse {
	out := checkoutResponse{Free: res.Free}
	if res.Payment != nil {
		out.PaymentID = res.Payment.ID
		out.TransactionID = res.Payment.TransactionID
	}
	if res.Enrollment != nil {
		out.EnrollmentID = res.Enrollment.ID
	}
	if res.Artifact != nil {
		out.CheckoutURL = res.Artifact.CheckoutURL
		out.QRImage = res.Artifact.QRImage
		out.QRContent = res.Artifact.QRContent
		out.Bank = res.Artifact.Bank
		out.ExpiresAt = res.Artifact.ExpiresAt
	}
	return out
}

func (s *Server) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	method := model.PaymentMethod(strings.ToLower(req.Method))
	switch method {
	case model.MethodStripe, model.MethodPayPal, model.MethodVietQR:
	default:
		respondError(w, http.StatusBadRequest, "Unsupported payment method")
		return
	}
	s.initiate(w, r, req.CourseID, method)
}

func (s *Server) paypalCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.initiate(w, r, req.CourseID, model.MethodPayPal)
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request, courseID string, method model.PaymentMethod) {
	claims := claimsFrom(r.Context())
	res, err := s.checkoutUC.Initiate(r.Context(), claims.UserID, courseID, method)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCheckoutResponse(res))
}

func (s *Server) qrHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	claims := claimsFrom(r.Context())
	res, err := s.checkoutUC.InitiateQR(r.Context(), claims.UserID, req.CourseID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCheckoutResponse(res))
}

func (s *Server) qrEnrollHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.initiate(w, r, req.CourseID, model.MethodVietQR)
}

// ===== PayPal execute =====

type paypalExecuteRequest struct {
	PaymentID string `json:"paymentId"`
	PayerID   string `json:"payerId"`
}

func (s *Server) paypalExecuteHandler(w http.ResponseWriter, r *http.Request) {
	var req paypalExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" || req.PayerID == "" {
		respondError(w, http.StatusBadRequest, "paymentId and payerId are required")
		return
	}
	claims := claimsFrom(r.Context())
	res, err := s.reconcile.ExecutePayPal(r.Context(), claims.UserID, req.PaymentID, req.PayerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outcome": res.Outcome,
		"payment": toPaymentResponse(res.Payment),
	})
}

// ===== Webhooks =====

func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	// The signature covers the exact bytes on the wire; read before parsing.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable body")
		return
	}

	n, err := s.stripeVerifier.VerifyAndParse(body, r.Header.Get("Stripe-Signature"), time.Now())
	if err != nil {
		s.webhookError(w, "stripe", err)
		return
	}
	if n == nil {
		// Event type we don't act on; acknowledge so Stripe stops retrying.
		respondJSON(w, http.StatusOK, map[string]string{"received": "true"})
		return
	}

	res, err := s.reconcile.Reconcile(r.Context(), model.MethodStripe, "", n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	// Stripe expects a 200 on every authenticated delivery, unmatched
	// included; anything else makes it retry for days. The event is already
	// archived for operators to inspect.
	ack := map[string]interface{}{"received": true, "outcome": res.Outcome}
	if res.Payment != nil {
		ack["status"] = res.Payment.Status
	}
	respondJSON(w, http.StatusOK, ack)
}

func (s *Server) vietqrWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable body")
		return
	}

	n, webhookID, err := s.vietqrVerifier.VerifyAndParse(body,
		r.Header.Get("X-Webhook-Signature"), r.Header.Get("X-Webhook-Timestamp"))
	if err != nil {
		s.webhookError(w, "vietqr", err)
		return
	}

	res, err := s.reconcile.Reconcile(r.Context(), model.MethodVietQR, webhookID, n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if res.Outcome == usecase.OutcomeUnmatched {
		respondJSON(w, http.StatusNotFound, map[string]interface{}{
			"webhookId": webhookID,
			"error":     "No payment matches this transaction",
		})
		return
	}
	ack := map[string]interface{}{
		"webhookId": webhookID,
		"outcome":   res.Outcome,
	}
	if res.Payment != nil {
		ack["status"] = res.Payment.Status
	}
	respondJSON(w, http.StatusOK, ack)
}

func (s *Server) webhookError(w http.ResponseWriter, provider string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		s.log.Warn().Str("provider", provider).Msg("webhook signature rejected")
		respondError(w, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, domain.ErrMalformedPayload):
		respondError(w, http.StatusBadRequest, "Malformed payload")
	default:
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// ===== Payment reads =====

type paymentResponse struct {
	ID             string     `json:"id"`
	CourseID       string     `json:"courseId,omitempty"`
	EnrollmentID   *string    `json:"enrollmentId,omitempty"`
	TransactionID  string     `json:"transactionId"`
	AmountCents    int64      `json:"amountCents"`
	Currency       string     `json:"currency"`
	Method         string     `json:"method"`
	Status         string     `json:"status"`
	InvoiceNumber  *string    `json:"invoiceNumber,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	AmountMismatch bool       `json:"amountMismatch,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toPaymentResponse(p *model.Payment) *paymentResponse {
	if p == nil {
		return nil
	}
	return &paymentResponse{
		ID:             p.ID,
		CourseID:       p.CourseID,
		EnrollmentID:   p.EnrollmentID,
		TransactionID:  p.TransactionID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		Method:         string(p.Method),
		Status:         string(p.Status),
		InvoiceNumber:  p.InvoiceNumber,
		FailureReason:  p.FailureReason,
		AmountMismatch: p.AmountMismatch,
		ExpiresAt:      p.ExpiresAt,
		CompletedAt:    p.CompletedAt,
		CreatedAt:      p.CreatedAt,
	}
}

func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	p, err := s.reconcile.Verify(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) paymentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	p, err := s.queries.Details(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var methods []model.PaymentMethod
	if q := r.URL.Query().Get("methods"); q != "" {
		for _, m := range strings.Split(q, ",") {
			methods = append(methods, model.PaymentMethod(strings.ToLower(strings.TrimSpace(m))))
		}
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	hist, err := s.queries.History(r.Context(), claims.UserID, methods, page, pageSize)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	items := make([]*paymentResponse, 0, len(hist.Payments))
	for _, p := range hist.Payments {
		items = append(items, toPaymentResponse(p))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payments": items,
		"total":    hist.Total,
		"page":     hist.Page,
		"pageSize": hist.PageSize,
	})
}

// unmatchedWebhooksHandler lists archived deliveries that never matched a
// payment. Admin-only; the raw payload is included so operators can chase a
// missing purchase without digging through provider dashboards.
func (s *Server) unmatchedWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.queries.UnmatchedWebhooks(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		items = append(items, map[string]interface{}{
			"id":            e.ID,
			"webhookId":     e.WebhookID,
			"provider":      e.Provider,
			"transactionId": e.TransactionID,
			"status":        e.Status,
			"amountCents":   e.AmountCents,
			"receivedAt":    e.ReceivedAt,
			"payload":       e.Payload,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": items,
		"count":  len(items),
	})
}

// ===== Manual confirmation =====

type manualConfirmRequest struct {
	Note string `json:"note"`
}

func (s *Server) manualConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req manualConfirmRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	claims := claimsFrom(r.Context())
	p, err := s.reconcile.ManualConfirm(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Note)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentResponse(p))
}

// ===== Invoices =====

func (s *Server) invoiceHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	rec, err := s.invoices.Lookup(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"invoiceNumber": rec.InvoiceNumber,
		"courseTitle":   rec.Course.Title,
		"amountCents":   rec.Payment.AmountCents,
		"currency":      rec.Payment.Currency,
		"completedAt":   rec.Payment.CompletedAt,
	})
}

func (s *Server) invoiceDownloadHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	rec, err := s.invoices.Lookup(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.InvoiceNumber+`.pdf"`)
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, rec.Path)
}

// ===== Enrollments =====

func (s *Server) freeEnrollHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	e, err := s.checkoutUC.FreeEnroll(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"enrollmentId":  e.ID,
		"courseId":      e.CourseID,
		"paymentStatus": e.PaymentStatus,
	})
}

func (s *Server) myEnrollmentsHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	list, err := s.queries.Enrollments(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	type enrollmentResponse struct {
		ID                   string    `json:"id"`
		CourseID             string    `json:"courseId"`
		PaymentStatus        string    `json:"paymentStatus"`
		CompletionPercentage int       `json:"completionPercentage"`
		EnrolledAt           time.Time `json:"enrolledAt"`
	}
	items := make([]enrollmentResponse, 0, len(list))
	for _, e := range list {
		items = append(items, enrollmentResponse{
			ID:                   e.ID,
			CourseID:             e.CourseID,
			PaymentStatus:        string(e.PaymentStatus),
			CompletionPercentage: e.CompletionPercentage,
			EnrolledAt:           e.EnrolledAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"enrollments": items})
}
