package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	qrcode "github.com/skip2/go-qrcode"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
	"course-marketplace/internal/domain/ports/adapter"
)

// VietQRGateway produces bank-transfer QR artifacts. Nothing is sent to the
// bank at checkout time; the transaction reference embedded in the transfer
// note is what the bank's webhook later matches on.
type VietQRGateway struct {
	cfg config.VietQRConfig
	now func() time.Time
}

var _ adapter.CheckoutGateway = (*VietQRGateway)(nil)

func NewVietQRGateway(cfg config.VietQRConfig) *VietQRGateway {
	return &VietQRGateway{cfg: cfg, now: time.Now}
}

func (g *VietQRGateway) Method() model.PaymentMethod { return model.MethodVietQR }

func (g *VietQRGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutArtifact, error) {
	ref := newTransactionRef()

	expiry := g.cfg.QRExpiry
	if req.EnrollmentID != "" {
		expiry = g.cfg.EnrollExpiry
	}
	expiresAt := g.now().Add(expiry)

	content := g.qrContent(ref, req.AmountCents)
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}

	return &adapter.CheckoutArtifact{
		TransactionID: ref,
		QRImage:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		QRContent:     content,
		Bank: &adapter.BankDetails{
			BankCode:      g.cfg.BankCode,
			BankName:      g.cfg.BankName,
			AccountNumber: g.cfg.AccountNumber,
			AccountName:   g.cfg.AccountName,
		},
		ExpiresAt: &expiresAt,
	}, nil
}

// qrContent builds the transfer instruction encoded into the QR image. The
// reference doubles as the transfer note so the bank webhook carries it back.
func (g *VietQRGateway) qrContent(ref string, amountCents int64) string {
	return fmt.Sprintf("bank://%s/%s?amount=%d&memo=%s",
		g.cfg.BankCode, g.cfg.AccountNumber, amountCents, ref)
}

func newTransactionRef() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return "VQR-" + id.String()
}

// VietQRWebhookVerifier authenticates inbound bank notifications. The
// signature covers the raw request body, optionally prefixed with the
// timestamp header when the bank sends one.
type VietQRWebhookVerifier struct {
	secret          string
	skipSignature   bool
	expectedAccount string
}

func NewVietQRWebhookVerifier(cfg config.VietQRConfig) *VietQRWebhookVerifier {
	return &VietQRWebhookVerifier{
		secret:          cfg.WebhookSecret,
		skipSignature:   cfg.SkipSignature,
		expectedAccount: cfg.AccountNumber,
	}
}

type vietqrWebhookPayload struct {
	WebhookID         string          `json:"webhookId"`
	TransactionID     string          `json:"transactionId"`
	Status            string          `json:"status"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	BankTransactionID string          `json:"bankTransactionId"`
	BankCode          string          `json:"bankCode"`
	AccountNumber     string          `json:"accountNumber"`
	Timestamp         string          `json:"timestamp"`
	Raw               json.RawMessage `json:"-"`
}

// VerifyAndParse checks the HMAC signature and validates required fields.
// A payload with an unrecognized status string still passes validation; the
// reconciler treats it as an anomaly rather than rejecting it at the door.
func (v *VietQRWebhookVerifier) VerifyAndParse(rawBody []byte, signature, timestamp string) (*model.Notification, string, error) {
	if !v.skipSignature {
		if v.secret == "" || signature == "" {
			return nil, "", domain.ErrInvalidSignature
		}
		signed := rawBody
		if timestamp != "" {
			signed = []byte(timestamp + "." + string(rawBody))
		}
		mac := hmac.New(sha256.New, []byte(v.secret))
		mac.Write(signed)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256="))) {
			return nil, "", domain.ErrInvalidSignature
		}
	}

	var payload vietqrWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if payload.TransactionID == "" || payload.Status == "" || payload.Amount <= 0 {
		return nil, payload.WebhookID, fmt.Errorf("%w: missing transactionId, status or amount", domain.ErrMalformedPayload)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(rawBody, &raw)

	currency := strings.ToUpper(payload.Currency)
	if currency == "" {
		currency = "VND"
	}
	// The bank may echo the receiving account; a payload naming a different
	// account than ours is suspicious even with a valid signature.
	accountMismatch := v.expectedAccount != "" && payload.AccountNumber != "" &&
		payload.AccountNumber != v.expectedAccount

	return &model.Notification{
		TransactionID:   payload.TransactionID,
		Status:          strings.ToUpper(payload.Status),
		AmountCents:     payload.Amount,
		Currency:        currency,
		ProviderRef:     payload.BankTransactionID,
		ReceivedAt:      time.Now(),
		AccountMismatch: accountMismatch,
		Raw:             raw,
	}, payload.WebhookID, nil
}
