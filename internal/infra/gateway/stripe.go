package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
)

const stripeAPIBase = "https://api.stripe.com"

// StripeGateway creates Checkout Sessions using direct HTTP calls against the
// Stripe API. The session id doubles as our transaction id; the later webhook
// carries it back in `data.object.id`.
type StripeGateway struct {
	secretKey string
	baseURL   string
	clientURL string
	client    *http.Client
}

var _ adapter.CheckoutGateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg config.StripeConfig, clientURL string) *StripeGateway {
	base := cfg.BaseURL
	if base == "" {
		base = stripeAPIBase
	}
	return &StripeGateway{
		secretKey: cfg.SecretKey,
		baseURL:   base,
		clientURL: clientURL,
		client:    &http.Client{},
	}
}

func (g *StripeGateway) Method() model.PaymentMethod { return model.MethodStripe }

type stripeSessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Error         *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutArtifact, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", g.clientURL+"/payment-result?status=success&session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", g.clientURL+"/payment-result?status=cancel")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.CourseTitle)
	if req.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", truncate(req.Description, 200))
	}
	form.Set("metadata[enrollment_id]", req.EnrollmentID)
	form.Set("metadata[course_id]", req.CourseID)
	form.Set("metadata[user_id]", req.UserID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(g.secretKey, "")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var session stripeSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if session.Error != nil {
		return nil, fmt.Errorf("%w: stripe error: %s", domain.ErrGatewayUnavailable, session.Error.Message)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: stripe returned no session", domain.ErrGatewayUnavailable)
	}

	return &adapter.CheckoutArtifact{
		TransactionID: session.ID,
		CheckoutURL:   session.URL,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
