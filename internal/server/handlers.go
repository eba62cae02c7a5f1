package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"docqa/internal/db"
	"docqa/internal/helper"
	"docqa/internal/rag"
)

type AskRequest struct {
	Question       string `json:"question"`
	FileID         int64  `json:"file_id"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}
	if req.FileID <= 0 {
		return badRequest(c, "file_id is required")
	}

	answer, err := s.rag.Query(c.Request().Context(), rag.Question{
		UserID:         currentUser(c),
		FileID:         req.FileID,
		Text:           req.Question,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleDebugRetrieval(c echo.Context) error {
	fileID, err := helper.ParseID(c.QueryParam("file_id"))
	if err != nil {
		return badRequest(c, "file_id is required")
	}
	query := c.QueryParam("q")
	if query == "" {
		return badRequest(c, "q is required")
	}
	k := 0
	if raw := c.QueryParam("k"); raw != "" {
		if k, err = strconv.Atoi(raw); err != nil || k <= 0 {
			return badRequest(c, "k must be a positive integer")
		}
	}
	strategy := c.QueryParam("strategy")
	if strategy != "" && strategy != rag.StrategyHybrid && strategy != rag.StrategySemantic {
		return badRequest(c, "strategy must be hybrid or semantic")
	}

	candidates, err := s.rag.Debug(c.Request().Context(), currentUser(c), fileID, query, strategy, k)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, candidates)
}

// handleSummary runs the summary in the request goroutine. A client that
// disconnects sets the task's cancellation token; the work itself runs on
// a context that outlives the request so the in-flight call can finish
// and the task is cleaned up.
//
// X-Task-ID only reaches the client together with the finished body, since
// headers are not flushed early so errors can still pick the status code.
// To cancel a running summary, look its task id up through
// GET /api/v1/summaries and post to the cancel endpoint.
func (s *Server) handleSummary(c echo.Context) error {
	fileID, err := helper.ParseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid document id")
	}
	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))

	reqCtx := c.Request().Context()
	task := s.summaries.Start(currentUser(c), fileID)
	c.Response().Header().Set("X-Task-ID", task.ID)

	finished := make(chan struct{})
	go func() {
		select {
		case <-reqCtx.Done():
			log.Info().Str("task_id", task.ID).Msg("Client disconnected, canceling summary")
			disconnectCancels.Inc()
			task.Token.Cancel()
		case <-finished:
		}
	}()

	res, err := s.summaries.Run(context.WithoutCancel(reqCtx), task, refresh)
	close(finished)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListSummaries(c echo.Context) error {
	return c.JSON(http.StatusOK, s.summaries.Active(currentUser(c)))
}

type StatusResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

func (s *Server) handleCancelSummary(c echo.Context) error {
	taskID := c.Param("task_id")
	if err := s.summaries.Cancel(currentUser(c), taskID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "cancellation requested", TaskID: taskID})
}

type ConversationRequest struct {
	DocumentID int64  `json:"document_id"`
	Title      string `json:"title"`
}

func (s *Server) handleListConversations(c echo.Context) error {
	convs, err := s.conversations.ListConversations(c.Request().Context(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	if convs == nil {
		convs = []db.Conversation{}
	}
	return c.JSON(http.StatusOK, convs)
}

func (s *Server) handleCreateConversation(c echo.Context) error {
	var req ConversationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.DocumentID <= 0 {
		return badRequest(c, "document_id is required")
	}
	conv, err := s.conversations.CreateConversation(c.Request().Context(), currentUser(c), req.DocumentID, req.Title)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(c echo.Context) error {
	id, err := helper.ParseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	conv, err := s.conversations.GetConversation(c.Request().Context(), currentUser(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) handleUpdateConversation(c echo.Context) error {
	id, err := helper.ParseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	var req ConversationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Title == "" {
		return badRequest(c, "title is required")
	}
	conv, err := s.conversations.UpdateConversationTitle(c.Request().Context(), currentUser(c), id, req.Title)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c echo.Context) error {
	id, err := helper.ParseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	if _, err := s.conversations.DeleteConversation(c.Request().Context(), currentUser(c), id); err != nil {
		return fail(c, err)
	}
	s.memory.Forget(id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMessages(c echo.Context) error {
	id, err := helper.ParseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	ctx := c.Request().Context()
	if _, err := s.conversations.GetConversation(ctx, currentUser(c), id); err != nil {
		return fail(c, err)
	}
	msgs, err := s.conversations.ListMessages(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if msgs == nil {
		msgs = []db.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleUserStats(c echo.Context) error {
	stats, err := s.conversations.UserStats(c.Request().Context(), currentUser(c), time.Now())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
