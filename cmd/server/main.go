package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"pvsimulator/internal/api"
	"pvsimulator/internal/logging"
	"pvsimulator/internal/metrics"
	"pvsimulator/internal/simulation"
	"pvsimulator/internal/solar"
	"pvsimulator/internal/storage"
	"pvsimulator/internal/weather"
	"pvsimulator/internal/ws"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	envFile := flag.String("env", ".env", "environment file (missing file is fine)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		// A present but unreadable env file is a configuration mistake.
		panic(err)
	}

	log := logging.Setup("pvsim-server")
	collector := metrics.NewCollector("pvsim")

	svc := solar.Standard{}
	engine := simulation.NewEngine(svc, log)

	var archive *storage.Archive
	if os.Getenv("PG_ENABLED") == "true" {
		var err error
		archive, err = storage.Open(storage.ConfigFromEnv(), log)
		if err != nil {
			log.WithError(err).Fatal("connecting to archive failed")
		}
		defer archive.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := archive.EnsureSchema(ctx); err != nil {
			cancel()
			log.WithError(err).Fatal("ensuring archive schema failed")
		}
		cancel()
	} else {
		log.Info("archive disabled, runs are kept in memory only")
	}

	var live api.LiveWeather
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		src, err := weather.NewMQTTSource(weather.MQTTConfig{
			Broker:   broker,
			ClientID: envOr("MQTT_CLIENT_ID", "pvsim-server"),
			Topic:    envOr("MQTT_TOPIC", "weather/observations"),
			QoS:      1,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("connecting to MQTT broker failed")
		}
		defer src.Close()
		live = src
	} else {
		log.Info("MQTT_BROKER not set, live weather feed disabled")
	}

	hub := ws.NewHub(log)
	hub.OnCountChange(func(n int) { collector.WSClients.Set(float64(n)) })
	stream := ws.NewHandler(hub, log)

	server := api.NewServer(engine, svc, archive, stream, live, collector, log)

	router := mux.NewRouter()
	server.Routes(router)
	router.Handle("/metrics", metrics.Handler())
	router.Handle("/ws", stream)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // CSV exports of fine-grained runs are large
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", *addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
