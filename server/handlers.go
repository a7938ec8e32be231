package main

import (
	_ "embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index.html").Parse(indexHTML))

// Server bundles the engine components behind the HTTP surface.
type Server struct {
	cfg   Config
	reg   *Registry
	mixer *Mixer
	hub   *StatusHub
}

// NewServer wires handlers to the shared registry, mixer and status hub.
func NewServer(cfg Config, reg *Registry, mixer *Mixer, hub *StatusHub) *Server {
	return &Server{cfg: cfg, reg: reg, mixer: mixer, hub: hub}
}

// getUpgrader returns a WebSocket upgrader configured to allow all origins
func getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // viewers are served from arbitrary hosts
		},
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.SetHTMLTemplate(indexTemplate)

	r.GET("/", s.handleIndex)
	r.GET("/check_streams", s.handleCheckStreams)
	r.GET("/stream/:id", s.handleSourceStream)
	r.GET("/mixed_stream", s.handleMixedStream)
	r.GET("/ws/status", s.handleStatusFeed)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// handleIndex renders the viewer page with one tile per source plus
// the mixed stream tile.
func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Streams": s.reg.Statuses(),
	})
}

// handleCheckStreams reports every source's status in configuration
// order. Pure read; this is the polling contract the page script uses.
func (s *Server) handleCheckStreams(c *gin.Context) {
	c.JSON(http.StatusOK, s.reg.Statuses())
}

// handleSourceStream proxies one source's frames to the client as a
// continuous multipart stream.
func (s *Server) handleSourceStream(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream id"})
		return
	}

	src := s.reg.Lookup(id)
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
		return
	}

	streamFrames(c.Writer, c.Request, src, "source")
}

// handleMixedStream serves the mixer's composite output.
func (s *Server) handleMixedStream(c *gin.Context) {
	streamFrames(c.Writer, c.Request, s.mixer, "mixed")
}

// handleStatusFeed upgrades the connection and subscribes it to status
// pushes.
func (s *Server) handleStatusFeed(c *gin.Context) {
	upgrader := getUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.Add(conn)
}

// handleHealth is the process liveness check.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}
