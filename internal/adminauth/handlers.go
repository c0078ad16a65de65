package adminauth

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/webhookrelay/delivery/internal/store"
)

type Handler struct {
	Store  *store.Store
	Secret []byte
}

func NewHandler(s *store.Store, secret []byte) *Handler {
	return &Handler{Store: s, Secret: secret}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Detail: detail})
}

// Register handles POST /api/v1/admin/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to hash password")
		return
	}

	account, err := h.Store.CreateAccount(r.Context(), req.Email, hash)
	if err != nil {
		writeError(w, r, http.StatusConflict, "email already registered")
		return
	}

	token, err := GenerateJWT(account.ID, h.Secret)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, tokenResponse{Token: token, AccountID: account.ID})
}

// Login handles POST /api/v1/admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	account, err := h.Store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to look up account")
		return
	}
	if err := CheckPassword(account.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := GenerateJWT(account.ID, h.Secret)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}
	render.JSON(w, r, tokenResponse{Token: token, AccountID: account.ID})
}
