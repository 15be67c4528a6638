package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter assembles the public HTTP surface.
func NewRouter(webhook *WebhookHandler, split *SplitHandler, booking *BookingHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/webhooks/mercadopago", webhook.Handle).Methods("POST")
	api.HandleFunc("/splits", split.Distribute).Methods("POST")
	api.HandleFunc("/bookings/{id}/complete", booking.CompleteClean).Methods("POST")
	api.HandleFunc("/bookings/{id}/complete-with-damages", booking.CompleteWithDamages).Methods("POST")
	api.HandleFunc("/bookings/{id}/finish-inspection", booking.FinishWithInspection).Methods("POST")
	api.HandleFunc("/bookings/{id}/disputes", booking.OpenDispute).Methods("POST")
	api.HandleFunc("/bookings/{id}/disputes/resolve", booking.ResolveDispute).Methods("POST")

	return r
}
