package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/models"
	"github.com/parceldesk/parceldesk/internal/services/shipments"
	"github.com/parceldesk/parceldesk/internal/services/users"
)

type registerRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	CompanyName *string `json:"company_name,omitempty"`
}

type userResponse struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	u, err := s.users.Register(r.Context(), users.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	switch {
	case errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("register user", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, u, err := s.users.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		slog.Error("login user", "username", req.Username, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserResponse(u)})
}

type shipmentResponse struct {
	ID                uint64     `json:"id"`
	TrackingNumber    string     `json:"tracking_number"`
	Carrier           string     `json:"carrier"`
	Status            string     `json:"status"`
	Description       *string    `json:"description,omitempty"`
	Origin            *string    `json:"origin,omitempty"`
	Destination       *string    `json:"destination,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toShipmentResponse(sh *models.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:                sh.ID,
		TrackingNumber:    sh.TrackingNumber,
		Carrier:           sh.Carrier,
		Status:            sh.Status,
		Description:       sh.Description,
		Origin:            sh.Origin,
		Destination:       sh.Destination,
		EstimatedDelivery: sh.EstimatedDelivery,
		CreatedAt:         sh.CreatedAt,
		UpdatedAt:         sh.UpdatedAt,
	}
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	items, err := s.shipments.List(r.Context(), userID)
	if err != nil {
		slog.Error("list shipments", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load shipments")
		return
	}

	out := make([]shipmentResponse, 0, len(items))
	for _, sh := range items {
		out = append(out, toShipmentResponse(sh))
	}
	writeJSON(w, http.StatusOK, out)
}

type createShipmentRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	Description    string `json:"description,omitempty"`
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req createShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
	if req.TrackingNumber == "" {
		writeError(w, http.StatusBadRequest, "tracking_number is required")
		return
	}

	sh, err := s.shipments.Create(r.Context(), userID, shipments.CreateInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Description:    req.Description,
	})
	switch {
	case errors.Is(err, shipments.ErrShipmentExists):
		writeError(w, http.StatusConflict, "shipment already tracked")
		return
	case err != nil:
		slog.Error("create shipment", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to create shipment")
		return
	}
	writeJSON(w, http.StatusCreated, toShipmentResponse(sh))
}

func (s *Server) handleRefreshShipments(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	sum, err := s.shipments.RefreshAll(r.Context(), userID)
	if err != nil {
		slog.Error("refresh shipments", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.chat.Reply(r.Context(), userID, req.Message)
	if err != nil {
		slog.Error("chat reply", "user_id", userID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
