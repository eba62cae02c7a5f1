// Package server exposes the question answering and summarization API over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/helper"
	"docqa/internal/memory"
	"docqa/internal/models"
	"docqa/internal/rag"
	"docqa/internal/summarizer"
)

// ConversationStore is the relational side of the conversation and
// analytics endpoints.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, documentID int64, title string) (*db.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID int64) (*db.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]db.Conversation, error)
	UpdateConversationTitle(ctx context.Context, userID, conversationID int64, title string) (*db.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID int64) (*db.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]db.Message, error)
	UserStats(ctx context.Context, userID int64, now time.Time) (*db.UserStats, error)
}

// Server wires the services to echo routes.
type Server struct {
	echo          *echo.Echo
	cfg           config.ServerConfig
	rag           *rag.RAG
	summaries     *summarizer.Service
	conversations ConversationStore
	memory        *memory.Manager
}

func NewServer(cfg *config.ServerConfig, r *rag.RAG, summaries *summarizer.Service, conversations ConversationStore, mem *memory.Manager) (*Server, error) {
	if r == nil || summaries == nil || conversations == nil || mem == nil {
		return nil, fmt.Errorf("server dependencies must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: helper.RequestID}))
	e.Use(requestLogger)

	s := &Server{
		echo:          e,
		cfg:           *cfg,
		rag:           r,
		summaries:     summaries,
		conversations: conversations,
		memory:        mem,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", userMiddleware(s.cfg.UserHeader))
	v1.POST("/ask", s.handleAsk)
	v1.GET("/debug/retrieval", s.handleDebugRetrieval)

	v1.POST("/documents/:id/summary", s.handleSummary)
	v1.GET("/summaries", s.handleListSummaries)
	v1.POST("/summaries/:task_id/cancel", s.handleCancelSummary)

	v1.GET("/conversations", s.handleListConversations)
	v1.POST("/conversations", s.handleCreateConversation)
	v1.GET("/conversations/:id", s.handleGetConversation)
	v1.PATCH("/conversations/:id", s.handleUpdateConversation)
	v1.DELETE("/conversations/:id", s.handleDeleteConversation)
	v1.GET("/conversations/:id/messages", s.handleListMessages)

	v1.GET("/analytics/user-stats", s.handleUserStats)
}

// Handler is the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	log.Info().Str("addr", addr).Msg("Starting http server")
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down http server")
	return s.echo.Shutdown(ctx)
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// fail maps domain errors onto status codes.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrRetrievalEmpty):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrGeneration):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Msg("Request failed")
		msg = "internal error"
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
