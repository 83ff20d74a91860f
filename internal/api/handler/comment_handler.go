package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/task-system/internal/api/metrics"
	"github.com/taskboard/task-system/internal/core/domain"
	"github.com/taskboard/task-system/internal/core/ports"
)

type commentRequest struct {
	Text string `json:"text" validate:"required,notblank"`
}

type commentResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func toCommentResponse(c *domain.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		UserID:    c.UserID,
		Username:  c.Username,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// CommentHandler handles HTTP requests for task comments. It serves both the
// dedicated /api/comments routes and the routes nested under a task.
type CommentHandler struct {
	service ports.CommentService
}

func NewCommentHandler(service ports.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// Add handles POST /api/comments/:id and POST /api/tasks/:id/comments, where
// :id is the task id.
//
// @Summary      Comment on a task
// @Description  Allowed for admins, the task creator and its assignees.
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int             true  "Task id"
// @Param        body  body      commentRequest  true  "Comment"
// @Success      201   {object}  commentResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/comments/{id} [post]
// @Router       /api/tasks/{id}/comments [post]
func (h *CommentHandler) Add(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c)
	if err != nil {
		return err
	}

	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	comment, err := h.service.AddComment(c.Request().Context(), caller, taskID, req.Text)
	if err != nil {
		return err
	}
	metrics.CommentsTotal.WithLabelValues("create").Inc()
	return c.JSON(http.StatusCreated, toCommentResponse(comment))
}

// ListOldestFirst handles GET /api/comments/:id.
//
// @Summary      List the comments of a task, oldest first
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task id"
// @Success      200  {array}   commentResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/comments/{id} [get]
func (h *CommentHandler) ListOldestFirst(c echo.Context) error {
	return h.list(c, ports.OldestFirst)
}

// ListNewestFirst handles GET /api/tasks/:id/comments.
//
// @Summary      List the comments of a task, newest first
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task id"
// @Success      200  {array}   commentResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/tasks/{id}/comments [get]
func (h *CommentHandler) ListNewestFirst(c echo.Context) error {
	return h.list(c, ports.NewestFirst)
}

func (h *CommentHandler) list(c echo.Context, order ports.CommentOrder) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c)
	if err != nil {
		return err
	}

	comments, err := h.service.ListComments(c.Request().Context(), caller, taskID, order)
	if err != nil {
		return err
	}
	out := make([]commentResponse, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toCommentResponse(cm))
	}
	return c.JSON(http.StatusOK, out)
}

// Edit handles PUT /api/comments/:id, where :id is the comment id.
//
// @Summary      Edit a comment
// @Description  Allowed for the author and admins.
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int             true  "Comment id"
// @Param        body  body      commentRequest  true  "New text"
// @Success      200   {object}  commentResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/comments/{id} [put]
func (h *CommentHandler) Edit(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	commentID, err := pathID(c)
	if err != nil {
		return err
	}

	// Text is validated by the service after the ownership check.
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	comment, err := h.service.EditComment(c.Request().Context(), caller, commentID, req.Text)
	if err != nil {
		return err
	}
	metrics.CommentsTotal.WithLabelValues("update").Inc()
	return c.JSON(http.StatusOK, toCommentResponse(comment))
}

// Delete handles DELETE /api/comments/:id, where :id is the comment id.
//
// @Summary      Delete a comment
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Comment id"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/comments/{id} [delete]
func (h *CommentHandler) Delete(c echo.Context) error {
	caller, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	commentID, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteComment(c.Request().Context(), caller, commentID); err != nil {
		return err
	}
	metrics.CommentsTotal.WithLabelValues("delete").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "comment deleted"})
}
