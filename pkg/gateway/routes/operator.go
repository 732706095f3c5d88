package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/gateway/auth"
	"github.com/reelqueue/platform/pkg/gateway/middleware"
)

type OperatorHandler struct{}

func NewOperatorHandler() *OperatorHandler {
	return &OperatorHandler{}
}

func (h *OperatorHandler) Register(r *mux.Router) {
	r.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
}

func (h *OperatorHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(middleware.OperatorContextKey).(*auth.Claims)
	if !ok || claims == nil {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "no operator token"})
		return
	}

	var expires interface{}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"subject":   claims.Subject,
		"role":      claims.Role,
		"issuer":    claims.Issuer,
		"expiresAt": expires,
	})
}
