package mcp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
)

// HTTPServer is the networked binding: a health endpoint plus the MCP
// SSE/message pair behind bearer-token auth. The token is owned by this
// value, set once at construction, read-only thereafter.
type HTTPServer struct {
	token      string
	sse        *server.SSEServer
	httpServer *http.Server
}

func NewHTTPServer(s *Server, host string, port int, token string) *HTTPServer {
	h := &HTTPServer{
		token: token,
		sse: server.NewSSEServer(s.mcp,
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
		),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.Handle("/sse", h.requireAuth(h.sse.SSEHandler())).Methods("GET")
	router.Handle("/message", h.requireAuth(h.sse.MessageHandler())).Methods("POST")

	h.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: corsMiddleware(router),
	}
	return h
}

// Handler exposes the routed handler, mostly for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.httpServer.Handler
}

func (h *HTTPServer) Addr() string {
	return h.httpServer.Addr
}

// Start blocks until the server stops. A Shutdown-initiated stop returns nil.
func (h *HTTPServer) Start() error {
	err := h.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.httpServer.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"server":    serverName,
		"transport": "http+sse",
	})
}

// requireAuth rejects requests without a matching bearer token before any
// session work happens. Missing and invalid tokens get distinct statuses.
func (h *HTTPServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeJSONError(w, http.StatusUnauthorized, "Missing Bearer token")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			writeJSONError(w, http.StatusForbidden, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GenerateToken returns a fresh URL-safe auth token for one server run.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
