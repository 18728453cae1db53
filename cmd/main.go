package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"pixelshare/internal/blob"
	"pixelshare/internal/models"
	"pixelshare/internal/notify"
	"pixelshare/internal/pipeline"
	"pixelshare/internal/queue"
	"pixelshare/internal/realtime"
	"pixelshare/internal/server"
	"pixelshare/internal/storage"
	"pixelshare/internal/tagging"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer db.Close()

	blobs := blob.NewLocal(cfg.StoragePath, cfg.PublicBaseURL, cfg.SignedURLSecret,
		time.Duration(cfg.MaxSignedTTLSecs)*time.Second)

	logo, err := loadWatermarkLogo(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load watermark logo")
	}

	oracle := tagging.NewHTTPOracle(cfg.TaggingURL)
	worker := pipeline.NewWorker(db, blobs, oracle, pipeline.Options{
		Logo:         logo,
		TagThreshold: cfg.TaggingThreshold,
	}, log)

	producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
	defer producer.Close()

	consumer := queue.NewConsumer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID, log)
	go func() {
		if err := consumer.Run(ctx, cfg.Workers, worker.ProcessPhoto); err != nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()

	hub := realtime.NewHub(log)
	notifier := notify.NewEngine(db, hub, log)

	srv := server.NewServer(cfg, db, blobs, producer, notifier, hub, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("addr", cfg.ServerAddr).Msg("server started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// loadWatermarkLogo prefers the configured logo image and falls back to
// rendering the watermark text with the configured font.
func loadWatermarkLogo(cfg *models.Config) (image.Image, error) {
	if cfg.WatermarkLogoPath != "" {
		if logo, err := imaging.Open(cfg.WatermarkLogoPath); err == nil {
			return logo, nil
		}
	}
	fontBytes, err := os.ReadFile(cfg.WatermarkFontPath)
	if err != nil {
		return nil, err
	}
	return pipeline.TextLogo(cfg.WatermarkText, fontBytes)
}
