package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-marketplace/internal/config"
	"course-marketplace/internal/infra/gateway"
	"course-marketplace/internal/infra/redis"
	"course-marketplace/internal/usecase"
)

type Server struct {
	checkoutUC usecase.CheckoutUseCase
	reconcile  usecase.ReconcileUseCase
	invoices   usecase.InvoiceUseCase
	queries    usecase.PaymentQueryUseCase

	stripeVerifier *gateway.StripeWebhookVerifier
	vietqrVerifier *gateway.VietQRWebhookVerifier

	auth    *AuthManager
	limiter *redis.RateLimiter
	policy  config.PaymentPolicyConfig
	log     *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	reconcile usecase.ReconcileUseCase,
	invoices usecase.InvoiceUseCase,
	queries usecase.PaymentQueryUseCase,
	stripeVerifier *gateway.StripeWebhookVerifier,
	vietqrVerifier *gateway.VietQRWebhookVerifier,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	policy config.PaymentPolicyConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC:     checkoutUC,
		reconcile:      reconcile,
		invoices:       invoices,
		queries:        queries,
		stripeVerifier: stripeVerifier,
		vietqrVerifier: vietqrVerifier,
		auth:           auth,
		limiter:        limiter,
		policy:         policy,
		log:            logger,
	}
}

// Router wires every route. Webhooks sit outside the session middleware;
// their trust boundary is the provider signature, not a bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", s.stripeWebhookHandler)
			r.Post("/vietqr", s.vietqrWebhookHandler)
			r.With(s.requireAdmin).Get("/unmatched", s.unmatchedWebhooksHandler)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)
				r.With(s.rateLimitCheckout).Post("/checkout", s.checkoutHandler)
				r.With(s.rateLimitCheckout).Post("/paypal/checkout", s.paypalCheckoutHandler)
				r.Post("/paypal/execute", s.paypalExecuteHandler)
				r.With(s.rateLimitCheckout).Post("/qr", s.qrHandler)
				r.With(s.rateLimitCheckout).Post("/qr/enroll", s.qrEnrollHandler)
				r.Get("/history", s.historyHandler)
				r.Get("/{id}", s.paymentDetailsHandler)
				r.Get("/{id}/verify", s.verifyHandler)
				r.Get("/{id}/invoice", s.invoiceHandler)
				r.Get("/{id}/invoice/download", s.invoiceDownloadHandler)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/{id}/manual-confirm", s.manualConfirmHandler)
			})
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/courses/{id}/enroll", s.freeEnrollHandler)
			r.Get("/me", s.myEnrollmentsHandler)
		})
	})

	return r
}

// rateLimitCheckout caps checkout initiations per user per minute. The
// limiter fails open when redis is down; losing the cap beats losing sales.
func (s *Server) rateLimitCheckout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			claims := claimsFrom(r.Context())
			ok, err := s.limiter.Allow(r.Context(), redis.CheckoutKey(claims.UserID), s.policy.CheckoutRatePerMinute, time.Minute)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
			}
			if !ok {
				respondError(w, http.StatusTooManyRequests, "Too many checkout attempts, slow down")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
