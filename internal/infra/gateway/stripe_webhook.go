package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"course-marketplace/internal/domain"
	"course-marketplace/internal/domain/model"
)

// StripeWebhookVerifier authenticates Stripe webhook deliveries. Verification
// runs over the raw, unparsed body bytes: parsing and re-serializing first
// would change the payload and invalidate the signature.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret, tolerance: 5 * time.Minute}
}

// VerifyAndParse checks the Stripe-Signature header against the raw body and,
// on success, normalizes a checkout.session.completed event into a
// Notification. Events of other types return (nil, nil): acknowledged,
// nothing to reconcile.
func (v *StripeWebhookVerifier) VerifyAndParse(rawBody []byte, sigHeader string, now time.Time) (*model.Notification, error) {
	if v.secret == "" || sigHeader == "" {
		return nil, domain.ErrInvalidSignature
	}

	ts, sigs, err := parseStripeSigHeader(sigHeader)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	if v.tolerance > 0 {
		at := time.Unix(ts, 0)
		if at.Before(now.Add(-v.tolerance)) || at.After(now.Add(v.tolerance)) {
			return nil, domain.ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	var matched bool
	for _, s := range sigs {
		sig, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, domain.ErrInvalidSignature
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID            string `json:"id"`
				AmountTotal   int64  `json:"amount_total"`
				Currency      string `json:"currency"`
				PaymentIntent string `json:"payment_intent"`
				PaymentStatus string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	if event.Type != "checkout.session.completed" {
		return nil, nil
	}
	if event.Data.Object.ID == "" {
		return nil, domain.ErrMalformedPayload
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(rawBody, &raw)

	return &model.Notification{
		TransactionID: event.Data.Object.ID,
		Status:        "COMPLETED",
		AmountCents:   event.Data.Object.AmountTotal,
		Currency:      strings.ToUpper(event.Data.Object.Currency),
		ProviderRef:   event.Data.Object.PaymentIntent,
		ReceivedAt:    now,
		Raw:           raw,
	}, nil
}

// parseStripeSigHeader splits "t=1699999999,v1=abc,v1=def" into the timestamp
// and candidate signatures.
func parseStripeSigHeader(h string) (int64, []string, error) {
	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(h, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("bad timestamp: %w", err)
			}
			ts = v
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("missing t or v1 element")
	}
	return ts, sigs, nil
}
