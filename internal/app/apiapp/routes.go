package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	audiosvc "github.com/dneufang33/mira-sora-visions/internal/services/audio"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	exportsvc "github.com/dneufang33/mira-sora-visions/internal/services/export"
	paymentsvc "github.com/dneufang33/mira-sora-visions/internal/services/payments"
	readingsvc "github.com/dneufang33/mira-sora-visions/internal/services/readings"
	videosvc "github.com/dneufang33/mira-sora-visions/internal/services/videos"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/handlers"
)

type Dependencies struct {
	Verifier           tokenVerifier
	EntitlementService *entsvc.Service
	PaymentService     *paymentsvc.Service
	ReadingService     *readingsvc.Service
	AudioService       *audiosvc.Service
	ExportService      *exportsvc.Service
	VideoService       *videosvc.Service
	Metrics            *metrics.Metrics
	Policy             rules.TierPolicy
	Logger             *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.EntitlementService, deps.Policy, deps.Logger)
	checkoutHandler := handlers.NewCheckoutHandler(deps.PaymentService, deps.Policy, deps.Logger)
	readingHandler := handlers.NewReadingHandler(deps.ReadingService, deps.Logger)
	mediaHandler := handlers.NewMediaHandler(deps.AudioService, deps.ExportService, deps.VideoService, deps.Policy, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)
	r.Method("GET", "/metrics", deps.Metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(AuthMiddleware(deps.Verifier, deps.Logger))

		v1.Post("/subscription/check", subscriptionHandler.Check)
		v1.Get("/subscription", subscriptionHandler.Get)
		v1.Get("/entitlements/{action}", subscriptionHandler.Entitlement)

		v1.Post("/checkout", checkoutHandler.Subscription)
		v1.Post("/checkout/product", checkoutHandler.Product)
		v1.Post("/billing/portal", checkoutHandler.Portal)

		v1.Post("/questionnaires", readingHandler.CreateQuestionnaire)
		v1.Get("/questionnaires", readingHandler.ListQuestionnaires)
		v1.Post("/readings", readingHandler.CreateReading)
		v1.Get("/readings", readingHandler.ListReadings)
		v1.Get("/readings/{id}", readingHandler.GetReading)
		v1.Post("/reports", readingHandler.CreateReport)

		v1.Post("/readings/{id}/audio", mediaHandler.CreateAudio)
		v1.Get("/readings/{id}/audio", mediaHandler.ListAudio)
		v1.Post("/readings/{id}/export", mediaHandler.CreateExport)
		v1.Post("/readings/{id}/video", mediaHandler.CreateVideo)
		v1.Post("/videos/{id}/status", mediaHandler.VideoStatus)
	})
}
