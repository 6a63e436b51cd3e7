package verify

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/core/logger"
)

// ConfirmRequest is the body of PATCH /bot/verify.
type ConfirmRequest struct {
	VerificationCode string `json:"verification_code" binding:"required"`
	UserID           int64  `json:"user_id" binding:"required,gt=0"`
}

// ParticipantResponse is returned after a successful link.
type ParticipantResponse struct {
	ID       int64             `json:"id"`
	ChatID   int64             `json:"tg_id"`
	Username string            `json:"username"`
	State    model.DialogState `json:"dialog_state"`
	UserID   int64             `json:"user_id"`
}

// Handler serves the linking endpoint.
type Handler struct {
	service *Service
	apiKey  string
}

// NewHandler builds a Handler guarded by apiKey.
func NewHandler(service *Service, apiKey string) *Handler {
	return &Handler{service: service, apiKey: apiKey}
}

// RequireAPIKey rejects requests without the shared key of the web backend.
func (h *Handler) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "verification API not configured"})
			return
		}
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// Confirm handles PATCH /bot/verify.
func (h *Handler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"verification_code": "incorrect"})
		return
	}
	p, err := h.service.Confirm(ctx, req.VerificationCode, req.UserID)
	switch {
	case errors.Is(err, ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"verification_code": "incorrect"})
		return
	case err != nil:
		logger.LogEvent(ctx, logger.HTTP, slog.LevelError, "verify.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link account"})
		return
	}
	c.JSON(http.StatusOK, ParticipantResponse{
		ID:       p.ID,
		ChatID:   p.ChatID,
		Username: p.Username,
		State:    p.State,
		UserID:   req.UserID,
	})
}

// Routes registers the endpoints on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	bot := r.Group("/bot", h.RequireAPIKey())
	bot.PATCH("/verify", h.Confirm)
}

// NewRouter builds a gin engine with recovery, access logging and the routes of h.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	h.Routes(r)
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := "ok"
		if c.Writer.Status() >= http.StatusInternalServerError {
			status = "fail"
		}
		logger.LogEvent(c.Request.Context(), logger.HTTP, slog.LevelInfo, "http.request",
			slog.String("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// Server runs the HTTP surface in the background.
type Server struct {
	srv  *http.Server
	done chan error
}

// Start listens on addr and serves h until Shutdown.
func Start(addr string, h *Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		done: make(chan error, 1),
	}
	go func() {
		logger.HTTP.Info("http server starting", slog.String("event", "http.start"), slog.String("addr", addr))
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			logger.HTTP.Error("http server error",
				slog.String("event", "http.serve"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		s.done <- err
	}()
	return s
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
