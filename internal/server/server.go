package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pixelshare/internal/blob"
	"pixelshare/internal/models"
	"pixelshare/internal/notify"
	"pixelshare/internal/queue"
	"pixelshare/internal/realtime"
	"pixelshare/internal/storage"
)

type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	db       *storage.Storage
	blobs    *blob.Local
	producer *queue.Producer
	notifier *notify.Engine
	hub      *realtime.Hub
	log      zerolog.Logger
	srv      *http.Server
}

func NewServer(cfg *models.Config, db *storage.Storage, blobs *blob.Local,
	producer *queue.Producer, notifier *notify.Engine, hub *realtime.Hub,
	log zerolog.Logger) *Server {

	r := gin.Default()
	// Public variants (watermarked, thumbnail) are served directly;
	// originals only through signed URLs.
	r.Static("/files", cfg.StoragePath)

	s := &Server{
		cfg:      cfg,
		router:   r,
		db:       db,
		blobs:    blobs,
		producer: producer,
		notifier: notifier,
		hub:      hub,
		log:      log.With().Str("component", "server").Logger(),
	}

	r.POST("/photos", s.handleUpload)
	r.GET("/photos/:id", s.handleGetPhoto)
	r.GET("/photos/:id/original", s.handleOriginalURL)
	r.POST("/photos/:id/likes", s.handleLike)
	r.POST("/photos/:id/comments", s.handleComment)
	r.POST("/photos/:id/tags", s.handleTagUsers)
	r.POST("/events/:id/photos/notify", s.handleEventPhotoAdded)
	r.GET("/notifications", s.handleListNotifications)
	r.POST("/notifications/:id/read", s.handleMarkRead)
	r.GET("/signed/*path", s.handleSignedFile)
	r.GET("/ws", s.handleWS)

	return s
}

func (s *Server) Start() error {
	s.srv = &http.Server{Addr: s.cfg.ServerAddr, Handler: s.router}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
