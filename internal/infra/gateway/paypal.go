package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
)

// PayPalGateway drives the classic create/approve/execute flow using direct
// HTTP calls. The PayPal payment id is our transaction id; Execute is the
// caller-driven confirmation leg: there is no webhook signature, the
// round-trip to PayPal authenticates the outcome.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	baseURL      string
	clientURL    string
	client       *http.Client
}

var (
	_ adapter.CheckoutGateway = (*PayPalGateway)(nil)
	_ adapter.PayPalExecutor  = (*PayPalGateway)(nil)
)

func NewPayPalGateway(cfg config.PayPalConfig, clientURL string) *PayPalGateway {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Sandbox {
			base = "https://api.sandbox.paypal.com"
		} else {
			base = "https://api.paypal.com"
		}
	}
	return &PayPalGateway{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      base,
		clientURL:    clientURL,
		client:       &http.Client{},
	}
}

func (g *PayPalGateway) Method() model.PaymentMethod { return model.MethodPayPal }

func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: paypal oauth: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: paypal oauth: no token", domain.ErrGatewayUnavailable)
	}
	return tok.AccessToken, nil
}

type paypalPaymentResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Transactions []struct {
		Amount struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Custom string `json:"custom"`
	} `json:"transactions"`
}

func (g *PayPalGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutArtifact, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	custom, _ := json.Marshal(map[string]string{
		"enrollmentId": req.EnrollmentID,
		"courseId":     req.CourseID,
		"userId":       req.UserID,
	})
	total := formatMajor(req.AmountCents)
	payload := map[string]interface{}{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"redirect_urls": map[string]string{
			"return_url": g.clientURL + "/payment-result?status=success",
			"cancel_url": g.clientURL + "/payment-result?status=cancel",
		},
		"transactions": []map[string]interface{}{{
			"description": req.CourseTitle,
			"custom":      string(custom),
			"amount": map[string]string{
				"total":    total,
				"currency": strings.ToUpper(req.Currency),
			},
			"item_list": map[string]interface{}{
				"items": []map[string]interface{}{{
					"name":     req.CourseTitle,
					"quantity": 1,
					"price":    total,
					"currency": strings.ToUpper(req.Currency),
				}},
			},
		}},
	}

	payment, err := g.post(ctx, tok, "/v1/payments/payment", payload)
	if err != nil {
		return nil, err
	}

	var approvalURL string
	for _, l := range payment.Links {
		if l.Rel == "approval_url" {
			approvalURL = l.Href
			break
		}
	}
	if payment.ID == "" || approvalURL == "" {
		return nil, fmt.Errorf("%w: paypal returned no approval url", domain.ErrGatewayUnavailable)
	}

	return &adapter.CheckoutArtifact{
		TransactionID: payment.ID,
		CheckoutURL:   approvalURL,
	}, nil
}

// Execute finalizes an approved payment and normalizes the outcome. The
// amount is read back from PayPal's response, not from the caller, so the
// reconciler can cross-check it against the stored payment.
func (g *PayPalGateway) Execute(ctx context.Context, paymentID, payerID string) (*model.Notification, error) {
	if paymentID == "" || payerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	payment, err := g.post(ctx, tok, "/v1/payments/payment/"+paymentID+"/execute", map[string]string{"payer_id": payerID})
	if err != nil {
		return nil, err
	}

	status := "FAILED"
	if strings.EqualFold(payment.State, "approved") {
		status = "COMPLETED"
	}

	var amountCents int64
	currency := ""
	if len(payment.Transactions) > 0 {
		amountCents = parseMajor(payment.Transactions[0].Amount.Total)
		currency = payment.Transactions[0].Amount.Currency
	}

	raw := map[string]interface{}{"paymentId": payment.ID, "state": payment.State, "payerId": payerID}
	return &model.Notification{
		TransactionID: payment.ID,
		Status:        status,
		AmountCents:   amountCents,
		Currency:      strings.ToUpper(currency),
		ProviderRef:   payerID,
		ReceivedAt:    time.Now(),
		Raw:           raw,
	}, nil
}

func (g *PayPalGateway) post(ctx context.Context, token, path string, payload interface{}) (*paypalPaymentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: paypal: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: paypal status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, string(respBody))
	}

	var payment paypalPaymentResponse
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(respBody))
	}
	return &payment, nil
}

// formatMajor renders minor units as "19.99" the way PayPal's classic API
// expects.
func formatMajor(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func parseMajor(s string) int64 {
	parts := strings.SplitN(s, ".", 2)
	major, _ := strconv.ParseInt(parts[0], 10, 64)
	var minor int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		minor, _ = strconv.ParseInt(frac, 10, 64)
	}
	return major*100 + minor
}
