package main

import (
	"log"

	config "GProject/global/config"
	"GProject/logger"
	"GProject/middleware"
	"GProject/service/gateway"
	"GProject/service/natsx"
	redis "GProject/service/storage/redis"

	"github.com/gin-gonic/gin"
)

func main() {

	config.ConfigIds()
	config.LoadEnv()
	cfg := config.Global

	// Optional presence mirror.
	if cfg.RedisAddr != "" {
		err := redis.InitRedis(redis.Config{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		})
		if err != nil {
			logger.Warnf("init redis: %v (presence mirror disabled)", err)
		}
	}

	g := gateway.NewServer(cfg.NodeID, gateway.Config{
		MaxFrameBytes:     cfg.MaxFrameBytes,
		HeartbeatInterval: cfg.HeartbeatInterval,
		WriteTimeout:      cfg.WriteTimeout,
		UnauthKickAfter:   cfg.UnauthKickAfter,
		PresenceTTL:       cfg.PresenceTTL,
	})
	defer g.Close()

	// Optional event ingest: collaborators publish envelopes over NATS.
	if cfg.NatsURL != "" {
		bridge, err := natsx.Start(natsx.Config{URL: cfg.NatsURL, Name: cfg.NodeID}, g)
		if err != nil {
			logger.Warnf("start nats bridge: %v (ingest disabled)", err)
		} else {
			defer bridge.Close()
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	r.GET(cfg.WSPath, g.HandleWS) // e.g. ws://localhost:8080/ws
	r.GET("/healthz", g.HandleHealth)

	logger.Infof("[HTTP] gateway %s listening on %s (ws path %s)", cfg.NodeID, cfg.Addr, cfg.WSPath)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
