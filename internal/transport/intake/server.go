package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 16 << 10

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type submission struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Message string `json:"message"`
}

// Server accepts contact-form submissions over HTTP and relays them into a
// configured chat.
type Server struct {
	addr     string
	chatID   int64
	notifier Notifier
	logger   *slog.Logger
	httpSrv  *http.Server
}

func NewServer(addr string, chatID int64, notifier Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:     addr,
		chatID:   chatID,
		notifier: notifier,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Post("/intake", s.handleIntake)
	return r
}

// Run blocks until the context is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("intake server started", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("intake listen: %w", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var sub submission
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sub.Name = strings.TrimSpace(sub.Name)
	sub.Contact = strings.TrimSpace(sub.Contact)
	sub.Message = strings.TrimSpace(sub.Message)
	if sub.Name == "" || sub.Message == "" {
		writeError(w, http.StatusBadRequest, "name and message are required")
		return
	}

	if err := s.notifier.SendText(r.Context(), s.chatID, renderSubmission(sub)); err != nil {
		s.logger.Error("relay intake submission", "error", err)
		writeError(w, http.StatusBadGateway, "delivery failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func renderSubmission(sub submission) string {
	lines := []string{
		"Новая заявка с сайта",
		fmt.Sprintf("Имя: %s", sub.Name),
	}
	if sub.Contact != "" {
		lines = append(lines, fmt.Sprintf("Контакт: %s", sub.Contact))
	}
	lines = append(lines, fmt.Sprintf("Сообщение: %s", sub.Message))
	return strings.Join(lines, "\n")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
