// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the monitor's HTTP surface: health probes, the
// Prometheus metrics endpoint and the status of the last run.
package api

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/metrics"
	"github.com/telekom/ses-account-monitor/pkg/monitor"
	"github.com/telekom/ses-account-monitor/pkg/version"
)

// StatusSource reports the outcome of the last monitor run.
type StatusSource interface {
	Status() monitor.RunStatus
}

// Server is the monitor's HTTP endpoint.
type Server struct {
	gin    *gin.Engine
	config config.Config
	status StatusSource
}

func NewServer(log *zap.Logger, cfg config.Config, status StatusSource, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	s := &Server{
		gin:    engine,
		config: cfg,
		status: status,
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/readyz", s.readyz)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("/api/status", s.getStatus)
	engine.GET("/api/version", s.getVersion)

	return s
}

// Listen serves HTTP until the process exits.
func (s *Server) Listen() {
	_ = s.gin.Run(s.config.Server.ListenAddress)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyz reports ready once a run has completed. Before the first run the
// monitor has nothing trustworthy to report.
func (s *Server) readyz(c *gin.Context) {
	if s.status.Status().RunID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting for first run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}
