package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/internal/service"
)

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if !s.Auth.ValidateToken(req.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	session := s.Auth.CreateSession()
	c.SetCookie("auth_token", session, 86400, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "authenticated"})
}

func (s *Server) handleEnqueue(c *gin.Context) {
	var req service.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Jobs.Enqueue(req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrStatusNotEligible):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.Logger.Error("Enqueue failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue publish job"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := s.Jobs.ListJobs(models.JobStatus(c.Query("status")), limit)
	if err != nil {
		s.Logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	job, err := s.Jobs.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelJob(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	if err := s.Jobs.Cancel(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (s *Server) handleCancelContentJobs(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	count, err := s.Jobs.CancelForContent(id)
	if err != nil {
		s.Logger.Error("Failed to cancel content jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": count})
}

func (s *Server) handleListLogs(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	logs, err := s.Jobs.ListLogs(id)
	if err != nil {
		s.Logger.Error("Failed to list publish logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list publish logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// handleDetectEmergency classifies one content item and, when it qualifies,
// places it on the emergency queue and enqueues an immediate publish job.
func (s *Server) handleDetectEmergency(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}

	var item models.ContentItem
	if err := s.DB.First(&item, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "content item not found"})
		return
	}

	detection := s.Emergency.DetectEmergency(&item)
	if !detection.IsEmergency {
		c.JSON(http.StatusOK, gin.H{"detection": detection})
		return
	}

	queueItem, err := s.Emergency.EnqueueEmergency(item.ID, detection)
	if err != nil {
		s.Logger.Error("Failed to enqueue emergency item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue emergency item"})
		return
	}

	// Emergency items bypass normal cadence: schedule the publish for now.
	now := s.nowUTC()
	enqueue, err := s.Jobs.Enqueue(service.EnqueueRequest{
		ContentID:   item.ID,
		ScheduledAt: &now,
		Origin:      "emergency",
	})
	if err != nil {
		s.Logger.Error("Failed to enqueue emergency publish job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue publish job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detection":  detection,
		"queue_item": queueItem,
		"job":        enqueue,
	})
}

func (s *Server) handleEmergencyQueue(c *gin.Context) {
	items, err := s.Emergency.ListQueue(models.EmergencyStatus(c.Query("status")))
	if err != nil {
		s.Logger.Error("Failed to list emergency queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list emergency queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleCancelEmergency(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		return
	}
	if err := s.Emergency.CancelQueueItem(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "emergency item cancelled"})
}

func (s *Server) handleGetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, s.PolicyStore.GetPolicy())
}

func (s *Server) handleUpdatePolicy(c *gin.Context) {
	var policy models.PublishingPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.PolicyStore.UpdatePolicy(policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "policy updated"})
}

func (s *Server) handleGetEmergencyRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.PolicyStore.GetEmergencyRules())
}

func (s *Server) handleUpdateEmergencyRules(c *gin.Context) {
	var rules models.EmergencyRules
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.PolicyStore.UpdateEmergencyRules(rules); err != nil {
		s.Logger.Error("Failed to update emergency rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update emergency rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "emergency rules updated"})
}

func (s *Server) handleAllDailyStats(c *gin.Context) {
	stats, err := s.PolicyStore.GetAllDailyStats()
	if err != nil {
		s.Logger.Error("Failed to compute daily stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute daily stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) handleDailyStats(c *gin.Context) {
	stats, err := s.PolicyStore.GetDailyStats(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleSchedulePreview returns the scheduling decision for a platform
// without side effects.
func (s *Server) handleSchedulePreview(c *gin.Context) {
	platform := c.Query("platform")
	if platform == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform is required"})
		return
	}
	isEmergency := c.Query("emergency") == "true"

	result, err := s.Scheduler.CalculateSchedule(platform, isEmergency)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) nowUTC() time.Time {
	return time.Now().UTC()
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, err
	}
	return uint(id), nil
}
