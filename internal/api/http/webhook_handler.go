package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/redis"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/service"
)

const eventDedupeTTL = 24 * time.Hour

// EventCache is the dedupe layer in front of webhook processing.
// Satisfied by redis.Client.
type EventCache interface {
	MarkEventSeen(ctx context.Context, topic, eventID string, ttl time.Duration) error
	ForgetEvent(ctx context.Context, topic, eventID string) error
}

// WebhookHandler receives MercadoPago notifications. Signature first,
// dedupe second, processing last. Processing failures un-mark the event
// and return 500 so the provider retries.
type WebhookHandler struct {
	reconSvc      service.ReconciliationService
	cache         EventCache
	webhookSecret string
}

func NewWebhookHandler(reconSvc service.ReconciliationService, cache EventCache, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		reconSvc:      reconSvc,
		cache:         cache,
		webhookSecret: webhookSecret,
	}
}

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = r.URL.Query().Get("type")
	}
	dataID := r.URL.Query().Get("data.id")
	if dataID == "" {
		dataID = r.URL.Query().Get("id")
	}

	// Newer notification format carries topic and id in the JSON body.
	if topic == "" || dataID == "" {
		var body webhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if topic == "" {
				topic = body.Type
			}
			if dataID == "" {
				dataID = body.Data.ID
			}
		}
	}
	if topic == "" || dataID == "" {
		respondError(w, http.StatusBadRequest, "missing topic or id")
		return
	}

	err := mercadopago.VerifyWebhookSignature(
		h.webhookSecret,
		r.Header.Get("x-signature"),
		r.Header.Get("x-request-id"),
		dataID,
	)
	if err != nil {
		logger.Warn("webhook signature rejected", "topic", topic, "dataID", dataID, "error", err)
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ctx := r.Context()
	if err := h.cache.MarkEventSeen(ctx, topic, dataID, eventDedupeTTL); err != nil {
		if errors.Is(err, redis.ErrDuplicateEvent) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
		// Cache down: fall through, the ledger dedupes on its own.
		logger.Warn("event dedupe unavailable", "topic", topic, "dataID", dataID, "error", err)
	}

	switch topic {
	case "payment":
		err = h.reconSvc.HandlePaymentEvent(ctx, dataID)
	case "money_request", "topic_money_request_wh":
		err = h.reconSvc.HandleMoneyRequestEvent(ctx, dataID)
	default:
		logger.Info("ignoring webhook topic", "topic", topic, "dataID", dataID)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Nothing on our side references this event. Ack it so the
			// provider stops retrying.
			logger.Info("webhook references unknown entity", "topic", topic, "dataID", dataID)
			respondJSON(w, http.StatusOK, map[string]string{"status": "unknown reference"})
			return
		}
		_ = h.cache.ForgetEvent(ctx, topic, dataID)
		logger.Error("webhook processing failed", "topic", topic, "dataID", dataID, "error", err)
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
