package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/notify"
	"drivekr-wallet-backend/internal/repository"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the side HTTP endpoints next to the gRPC server.
type Handler struct {
	notifications repository.NotificationRepository
	health        HealthCheck
}

func NewHandler(notifications repository.NotificationRepository, health HealthCheck) *Handler {
	return &Handler{notifications: notifications, health: health}
}

// HandleHealth answers 200 when the record store responds.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	code := http.StatusOK
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			logger.Warn("Health check failed", "error", err)
			body = map[string]string{"status": "unavailable", "error": err.Error()}
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleWhatsAppRedirect sends the browser to the wa.me link stored on a notification.
func (h *Handler) HandleWhatsAppRedirect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := h.notifications.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		logger.Error("Failed to load notification", "notificationID", id, "error", err)
		http.Error(w, "Failed to load notification", http.StatusServiceUnavailable)
		return
	}
	if n.Channel != notify.ChannelWhatsApp || n.DeliveryRef == "" {
		http.Error(w, "Notification has no WhatsApp link", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, n.DeliveryRef, http.StatusFound)
}

// RegisterRoutes registers the side HTTP endpoints.
func RegisterRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/healthz", h.HandleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/notifications/{id}/whatsapp", h.HandleWhatsAppRedirect).Methods("GET")
}
