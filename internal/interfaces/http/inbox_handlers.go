package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/payment-requests/internal/application/service"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
)

// InboxQuery represents query parameters for listing notifications
type InboxQuery struct {
	Unread bool `form:"unread"`
}

// MarkReadResponse reports how many notifications were marked read
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListComments handles GET /api/v1/requests/:id/comments
func (h *Handlers) ListComments(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "list comments", err)
		return
	}
	comments, err := h.services.Comments.List(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "list comments", err)
		return
	}
	ok(c, http.StatusOK, comments)
}

// AddComment handles POST /api/v1/requests/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "add comment", err)
		return
	}
	var input service.CommentInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "add comment", err)
		return
	}
	comment, err := h.services.Comments.Add(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, "add comment", err)
		return
	}
	ok(c, http.StatusCreated, comment)
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	var q InboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, "list notifications", apperr.Validation("invalid query parameters: %v", err))
		return
	}
	inbox, err := h.services.Inbox.List(c.Request.Context(), principalFrom(c), q.Unread)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	ok(c, http.StatusOK, inbox)
}

// MarkNotificationsRead handles POST /api/v1/notifications/mark-read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	updated, err := h.services.Inbox.MarkAllRead(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.fail(c, "mark notifications read", err)
		return
	}
	ok(c, http.StatusOK, MarkReadResponse{Updated: updated})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "delete notification", err)
		return
	}
	if err := h.services.Inbox.Delete(c.Request.Context(), principalFrom(c), id); err != nil {
		h.fail(c, "delete notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}
