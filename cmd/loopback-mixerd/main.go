// Command loopback-mixerd hosts the real-time stereo mixing core, binds it
// to the default audio devices, and exposes status/control surfaces over
// HTTP and Prometheus.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agalue/loopback-mixer/internal/audio"
	"github.com/agalue/loopback-mixer/internal/config"
	"github.com/agalue/loopback-mixer/internal/httpapi"
	"github.com/agalue/loopback-mixer/internal/mixer"
	"github.com/agalue/loopback-mixer/internal/telemetry"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("configuration error", "err", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	log.SetLevel(level)

	log.Info("loopback-mixerd starting", "sample_rate", cfg.SampleRate, "max_block_frames", cfg.MaxBlockFrames)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mx := mixer.New(uint32(cfg.SampleRate), cfg.MaxBlockFrames)
	micID, _ := mx.AddSource(cfg.DefaultSourceCapacityFrames)
	mx.SetMicrophoneSource(micID)

	capturer, err := audio.NewCapturer(mx, micID)
	if err != nil {
		log.Fatal("failed to initialize microphone capture", "err", err)
	}
	if err := capturer.Start(); err != nil {
		log.Fatal("failed to start microphone capture", "err", err)
	}
	defer capturer.Close()
	log.Info("microphone capture started")

	player, err := audio.NewPlayer(mx)
	if err != nil {
		log.Fatal("failed to initialize playback device", "err", err)
	}
	defer player.Close()
	log.Info("playback device started")

	collector := telemetry.NewCollector(mx, time.Now())
	registerCollector(collector)

	server := httpapi.NewServer(mx)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server,
	}

	go func() {
		log.Info("http control surface listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
		}
	}()

	if cfg.MetricsAddr != cfg.HTTPAddr {
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", "err", err)
			}
		}()
		defer metricsServer.Close()
	}

	<-sigChan
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func registerCollector(collector *telemetry.Collector) {
	prometheus.MustRegister(collector)
}
