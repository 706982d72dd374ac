package handler

import (
	"net/http"
	"strings"

	"github.com/clipshelf/server/internal/ctxkeys"
	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/middleware"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/response"
	"github.com/clipshelf/server/internal/service"
)

type AuthHandler struct {
	accounts *service.AccountService
	sessions *service.SessionService
}

func NewAuthHandler(accounts *service.AccountService, sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	// Identifier is a username or an email address.
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	User *model.User `json:"user"`
	*service.TokenPair
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password, clientIP(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("user registered", "user_id", user.ID)
	response.JSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}

	ip := clientIP(r)
	user, err := h.accounts.VerifyCredentials(r.Context(), identifier, req.Password, ip)
	if err != nil {
		logger.FromContext(r.Context()).Debug("login failed", "error", err, "ip", ip)
		response.FromError(w, r, err)
		return
	}

	pair, err := h.sessions.Issue(r.Context(), user.ID, r.UserAgent(), ip)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, loginResponse{User: user, TokenPair: pair})
}

// Refresh accepts the refresh token in the body or as a bearer token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		err := decodeJSON(w, r, &req)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token = middleware.BearerToken(r)
	}

	pair, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := ctxkeys.Session(r.Context())

	err := h.sessions.Revoke(r.Context(), session.Token)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Message(w, http.StatusOK, "logged out")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.ByID(r.Context(), ctxkeys.User(r.Context()).ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}
