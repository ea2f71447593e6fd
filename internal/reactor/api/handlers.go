package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"native-exporter/internal/reactor/hub"
	"native-exporter/internal/reactor/store"
	"native-exporter/internal/security"
	"native-exporter/internal/worker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware governs browser origins
	},
}

// Store is the persistence the handlers need. *store.Store implements it.
type Store interface {
	CreateUser(email, password string) error
	AuthenticateUser(email, password string) (*store.User, error)
	CreateAPIKey(userID int, keyType string) (string, error)
	VerifyAPIKey(rawKey string) (*store.APIKey, error)
	ListAPIKeys(userID int) ([]store.APIKey, error)
	ListJobs(email string, limit int) ([]worker.JobInfo, error)
}

// Settings are the request-level knobs taken from config.
type Settings struct {
	// APISecret verifies signed export requests; empty disables the check.
	APISecret string
	// JWTSecret signs bearer tokens; empty disables token checks.
	JWTSecret string
	TokenTTL  time.Duration
	// JobTimeout bounds each export job.
	JobTimeout time.Duration
	// RemoteDriver is the driver kind remote and agent queries run on; it
	// selects how queries are validated.
	RemoteDriver string
}

type Handler struct {
	Store    Store
	Hub      *hub.Hub
	Pool     *worker.Pool
	Settings Settings
}

func NewHandler(s Store, h *hub.Hub, p *worker.Pool, settings Settings) *Handler {
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = 24 * time.Hour
	}
	if settings.JobTimeout <= 0 {
		settings.JobTimeout = 15 * time.Minute
	}
	return &Handler{
		Store:    s,
		Hub:      h,
		Pool:     p,
		Settings: settings,
	}
}

// Routes registers every endpoint. metrics may be nil.
func (h *Handler) Routes(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/export", h.HandleExport)
	mux.HandleFunc("/jobs", h.HandleJobs)
	mux.HandleFunc("/jobs/{id}", h.HandleJob)
	mux.HandleFunc("/agent/control", h.HandleControl)
	mux.HandleFunc("/agent/data", h.HandleData)
	mux.HandleFunc("/dashboard/stream", h.HandleDashboard)
	mux.HandleFunc("/auth/register", h.HandleRegister)
	mux.HandleFunc("/auth/verify", h.HandleVerify)
	mux.HandleFunc("/auth/keys/create", h.HandleCreateKey)
	mux.HandleFunc("/auth/keys/list", h.HandleListKeys)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// authenticate reads a bearer token from the Authorization header or the
// token query parameter (browsers cannot set headers on websockets).
func (h *Handler) authenticate(r *http.Request) (*security.Claims, error) {
	if h.Settings.JWTSecret == "" {
		return &security.Claims{}, nil
	}

	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return nil, security.ErrInvalidToken
	}
	return security.ParseToken(h.Settings.JWTSecret, token)
}

// --- Auth Handlers ---

type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyResponse struct {
	User  *store.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := security.ValidateEmail(req.Email); err != nil || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateUser(req.Email, req.Password); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		}
		slog.Error("Register failed", "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created"})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.Store.AuthenticateUser(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	resp := VerifyResponse{User: user}
	if h.Settings.JWTSecret != "" {
		resp.Token, err = security.IssueToken(h.Settings.JWTSecret, user.ID, user.Email, h.Settings.TokenTTL)
		if err != nil {
			slog.Error("Token issue failed", "error", err)
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- API Key Handlers ---

type CreateKeyRequest struct {
	UserID int    `json:"user_id"`
	Type   string `json:"type"` // "live" or "test"
}

// userID prefers the authenticated user; the explicit id is only honored
// when tokens are disabled.
func (h *Handler) userID(claims *security.Claims, explicit int) int {
	if h.Settings.JWTSecret != "" {
		return claims.UserID
	}
	return explicit
}

func (h *Handler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Type != "live" && req.Type != "test" {
		http.Error(w, "Key type must be live or test", http.StatusBadRequest)
		return
	}

	key, err := h.Store.CreateAPIKey(h.userID(claims, req.UserID), req.Type)
	if err != nil {
		slog.Error("Create Key failed", "error", err)
		http.Error(w, "Failed to create key", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "type": req.Type})
}

func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var explicit int
	if h.Settings.JWTSecret == "" {
		explicit, err = strconv.Atoi(r.URL.Query().Get("user_id"))
		if err != nil {
			http.Error(w, "Invalid user_id", http.StatusBadRequest)
			return
		}
	}

	keys, err := h.Store.ListAPIKeys(h.userID(claims, explicit))
	if err != nil {
		slog.Error("List keys failed", "error", err)
		http.Error(w, "Failed to list keys", http.StatusInternalServerError)
		return
	}
	if keys == nil {
		keys = []store.APIKey{}
	}

	writeJSON(w, http.StatusOK, keys)
}
