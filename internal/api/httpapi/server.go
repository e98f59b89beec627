package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/parceldesk/parceldesk/internal/models"
	"github.com/parceldesk/parceldesk/internal/push"
	"github.com/parceldesk/parceldesk/internal/services/shipments"
	"github.com/parceldesk/parceldesk/internal/services/users"
)

type UsersService interface {
	Register(ctx context.Context, in users.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type ShipmentsService interface {
	Create(ctx context.Context, userID uint64, in shipments.CreateInput) (*models.Shipment, error)
	List(ctx context.Context, userID uint64) ([]*models.Shipment, error)
	RefreshAll(ctx context.Context, userID uint64) (shipments.RefreshSummary, error)
}

type ChatService interface {
	Reply(ctx context.Context, userID uint64, message string) (string, error)
}

type TokenVerifier interface {
	Verify(token string) (uint64, error)
}

type Server struct {
	users     UsersService
	shipments ShipmentsService
	chat      ChatService
	verifier  TokenVerifier
	hub       *push.Hub

	upgrader websocket.Upgrader
}

func NewServer(usersSvc UsersService, shipmentsSvc ShipmentsService, chatSvc ChatService, verifier TokenVerifier, hub *push.Hub) *Server {
	return &Server{
		users:     usersSvc,
		shipments: shipmentsSvc,
		chat:      chatSvc,
		verifier:  verifier,
		hub:       hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser origin is not a trust boundary here: every
			// socket still has to present a valid token to join.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/shipments", s.handleListShipments)
			r.Post("/shipments", s.handleCreateShipment)
			r.Post("/shipments/refresh", s.handleRefreshShipments)
			r.Post("/chat", s.handleChat)
		})

		r.Get("/ws", s.handleWS)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
