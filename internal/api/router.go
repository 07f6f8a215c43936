package api

import "net/http"

// RouterConfig bundles the handlers and middleware used to assemble the API
// route table.
type RouterConfig struct {
	Auth          *AuthHandlers
	Points        *PointHandlers
	Recyclers     *RecyclerHandlers
	Rewards       *RewardHandlers
	Stats         *StatsHandlers
	Notifications *NotificationHandlers
	Messages      *MessageHandlers
	Ratings       *RatingHandlers
	Donations     *DonationHandlers
	Photos        *PhotoHandlers
	Session       *SessionHandlers
	Webhooks      *WebhookHandlers
	Health        *HealthHandlers

	// Feed serves the WebSocket change feed (optional).
	Feed http.Handler

	// Metrics serves the Prometheus scrape endpoint (optional).
	Metrics http.Handler

	// Authenticate wraps protected routes with access token validation.
	Authenticate func(http.Handler) http.Handler

	// RequireRecycler restricts a route to authenticated recyclers.
	RequireRecycler func(http.Handler) http.Handler

	// DonationGuard wraps donation creation, e.g. with idempotency keys
	// (optional).
	DonationGuard func(http.Handler) http.Handler
}

// NewRouter builds the API route table. Auth endpoints, probes, metrics and
// the Stripe webhook are public; everything else requires an access token.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	authed := cfg.Authenticate
	if authed == nil {
		authed = func(next http.Handler) http.Handler { return next }
	}
	recycler := func(next http.Handler) http.Handler {
		if cfg.RequireRecycler == nil {
			return authed(next)
		}
		return authed(cfg.RequireRecycler(next))
	}

	handle := func(pattern string, h http.HandlerFunc, wrap func(http.Handler) http.Handler) {
		mux.Handle(pattern, wrap(h))
	}

	// Authentication (public)
	mux.HandleFunc("POST /v1/auth/register", cfg.Auth.Register)
	mux.HandleFunc("POST /v1/auth/login", cfg.Auth.Login)
	mux.HandleFunc("POST /v1/auth/refresh", cfg.Auth.Refresh)

	// Collection points and the claim lifecycle
	handle("GET /v1/points", cfg.Points.ListPoints, authed)
	handle("POST /v1/points", cfg.Points.CreatePoint, authed)
	handle("GET /v1/points/{id}", cfg.Points.GetPoint, authed)
	handle("DELETE /v1/points/{id}", cfg.Points.DeletePoint, authed)
	handle("POST /v1/points/{id}/claim", cfg.Points.ClaimPoint, recycler)
	handle("POST /v1/points/{id}/cancel", cfg.Points.CancelClaim, authed)
	handle("POST /v1/points/{id}/complete", cfg.Points.CompleteClaim, recycler)
	handle("POST /v1/points/{id}/reopen", cfg.Points.ReopenPoint, authed)
	handle("GET /v1/points/{id}/claims", cfg.Points.ListClaims, authed)

	// Recyclers
	handle("GET /v1/recyclers/online", cfg.Recyclers.ListOnline, authed)
	handle("POST /v1/recyclers/presence", cfg.Recyclers.SetPresence, recycler)
	handle("GET /v1/recyclers/{id}/ratings", cfg.Recyclers.RatingSummary, authed)

	// Rewards
	handle("GET /v1/rewards/balance", cfg.Rewards.Balance, authed)

	// Activity statistics
	if cfg.Stats != nil {
		handle("GET /v1/stats", cfg.Stats.Overview, authed)
	}

	// Notifications
	handle("GET /v1/notifications", cfg.Notifications.List, authed)
	handle("GET /v1/notifications/unread", cfg.Notifications.UnreadCount, authed)
	handle("POST /v1/notifications/{id}/read", cfg.Notifications.MarkRead, authed)

	// Direct messages
	handle("POST /v1/messages", cfg.Messages.Send, authed)
	handle("GET /v1/messages/unread", cfg.Messages.UnreadBySender, authed)
	handle("GET /v1/messages/{user_id}", cfg.Messages.Conversation, authed)
	handle("POST /v1/messages/{user_id}/read", cfg.Messages.MarkConversationRead, authed)

	// Ratings
	handle("POST /v1/ratings", cfg.Ratings.Create, authed)

	// Donations
	if cfg.Donations != nil {
		donate := authed
		if cfg.DonationGuard != nil {
			inner := donate
			donate = func(next http.Handler) http.Handler {
				return inner(cfg.DonationGuard(next))
			}
		}
		handle("POST /v1/donations", cfg.Donations.Create, donate)
	}

	// Photo uploads
	if cfg.Photos != nil {
		handle("POST /v1/photos/sign", cfg.Photos.SignPhoto, authed)
	}

	// Session state
	if cfg.Session != nil {
		handle("/v1/session/tab", cfg.Session.Tab, authed)
	}

	// Change feed
	if cfg.Feed != nil {
		mux.Handle("GET /v1/feed", authed(cfg.Feed))
	}

	// Stripe webhook (signature-verified, not token-authenticated)
	if cfg.Webhooks != nil {
		mux.HandleFunc("POST /internal/stripe", cfg.Webhooks.HandleStripeWebhook)
	}

	// Probes and metrics
	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return mux
}
