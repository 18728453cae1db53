package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pixelshare/internal/blob"
	"pixelshare/internal/models"
	"pixelshare/internal/notify"
	"pixelshare/internal/realtime"
	"pixelshare/internal/storage"
)

// actingUser reads the identity injected by the upstream auth middleware.
// Authentication itself is out of scope for this service.
func actingUser(c *gin.Context) (*models.UserRef, error) {
	id, err := uuid.Parse(c.GetHeader("X-User-ID"))
	if err != nil {
		return nil, fmt.Errorf("missing or invalid X-User-ID header")
	}
	return &models.UserRef{ID: id, Username: c.GetHeader("X-Username")}, nil
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	actor, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	eventID, err := uuid.Parse(c.PostForm("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
		return
	}
	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	id := uuid.New()
	path, _, err := s.blobs.Upload(c.Request.Context(), id.String(), blob.VariantOriginal, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	photo := &models.Photo{
		ID:               id,
		PhotographerID:   actor.ID,
		EventID:          eventID,
		Status:           models.PhotoPending,
		OriginalPath:     path,
		Meta:             map[string]string{},
		AutoTags:         []string{},
		ProcessingErrors: map[string]string{},
	}
	if err := s.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	if err := s.producer.EnqueueProcessing(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id.String(), "status": photo.Status})
}

func (s *Server) handleGetPhoto(c *gin.Context) {
	const op = "server.handleGetPhoto"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	photo, err := s.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleOriginalURL(c *gin.Context) {
	const op = "server.handleOriginalURL"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	photo, err := s.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	ttl := time.Duration(0) // SignedURL clamps zero/overlong TTLs to the max
	if raw := c.Query("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = time.Duration(secs) * time.Second
	}
	url, err := s.blobs.SignedURL(photo.OriginalPath, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleLike(c *gin.Context) {
	const op = "server.handleLike"

	actor, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	photo, err := s.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	// Likes on one photo collapse into a single notification whose count
	// accumulates.
	n, err := s.notifier.RecordAndDeliver(c.Request.Context(), notify.Event{
		Recipient:  photo.PhotographerID,
		Actor:      actor,
		Verb:       models.VerbLiked,
		TargetType: models.TargetPhoto,
		TargetID:   photo.ID.String(),
		Data:       map[string]any{"count": 1},
		DedupeKey:  fmt.Sprintf("like:%s:%s", photo.PhotographerID, photo.ID),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) handleComment(c *gin.Context) {
	const op = "server.handleComment"

	actor, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	photo, err := s.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	// Comments never merge: each one is its own notification.
	n, err := s.notifier.RecordAndDeliver(c.Request.Context(), notify.Event{
		Recipient:  photo.PhotographerID,
		Actor:      actor,
		Verb:       models.VerbCommented,
		TargetType: models.TargetPhoto,
		TargetID:   photo.ID.String(),
		Data:       map[string]any{"content": req.Content},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) handleTagUsers(c *gin.Context) {
	const op = "server.handleTagUsers"

	actor, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	var req struct {
		Users []models.UserRef `json:"users" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	photo, err := s.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	for _, user := range req.Users {
		_, err := s.notifier.RecordAndDeliver(c.Request.Context(), notify.Event{
			Recipient:  user.ID,
			Actor:      actor,
			Verb:       models.VerbTagged,
			TargetType: models.TargetPhoto,
			TargetID:   photo.ID.String(),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEventPhotoAdded(c *gin.Context) {
	const op = "server.handleEventPhotoAdded"

	actor, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	var req struct {
		RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
		PhotoID     uuid.UUID `json:"photo_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Repeated uploads to the same event collapse into one notification
	// per recipient with an accumulating count.
	n, err := s.notifier.RecordAndDeliver(c.Request.Context(), notify.Event{
		Recipient:  req.RecipientID,
		Actor:      actor,
		Verb:       models.VerbEventPhotoAdded,
		TargetType: models.TargetEvent,
		TargetID:   eventID.String(),
		Data:       map[string]any{"count": 1, "photo_id": req.PhotoID.String()},
		DedupeKey:  fmt.Sprintf("event-photo:%s:%s", req.RecipientID, eventID),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	const op = "server.handleListNotifications"

	user, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := s.db.ListNotifications(c.Request.Context(), user.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	const op = "server.handleMarkRead"

	user, err := actingUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if err := s.db.MarkNotificationRead(c.Request.Context(), id, user.ID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSignedFile(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil || !s.blobs.Verify(path, exp, c.Query("sig")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired signature"})
		return
	}
	c.File(s.blobs.FilePath(path))
}

func (s *Server) handleWS(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid user"})
		return
	}
	group := notify.GroupForRecipient(userID)
	if err := realtime.ServeWS(s.hub, group, c.Writer, c.Request); err != nil {
		s.log.Error().Err(err).Str("group", group).Msg("websocket upgrade failed")
	}
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
