package simulator

import (
	"errors"
	"net/http"

	"github.com/fsandov/botpress-simulator/pkg/paginate"
	"github.com/fsandov/botpress-simulator/pkg/transcript"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under r. Transcript and conversation routes
// exist only when the matching store is configured.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/message", s.postMessage)
	if s.conversations != nil {
		api.GET("/conversations/:user_id", s.getConversation)
		api.DELETE("/conversations/:user_id", s.deleteConversation)
	}
	if s.transcripts != nil {
		api.GET("/transcripts", paginate.GinPagination(transcript.SortableColumns...), s.listTranscripts)
	}
}

func (s *Service) postMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.HandleMessage(c.Request.Context(), req))
}

func (s *Service) getConversation(c *gin.Context) {
	conv, err := s.conversations.Describe(c.Request.Context(), c.Param("user_id"))
	if errors.Is(err, ErrNoConversation) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Service) deleteConversation(c *gin.Context) {
	if err := s.conversations.Forget(c.Request.Context(), c.Param("user_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) listTranscripts(c *gin.Context) {
	res, err := s.transcripts.List(c.Request.Context(), c.Query("user_id"))
	if errors.Is(err, paginate.ErrPageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
