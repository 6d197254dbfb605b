// routes.go - HTTP-Router und Server-Lifecycle.
//
// Dieses Modul enthaelt:
// - Server-Struktur mit austauschbarem Generator
// - Router-Aufbau mit CORS und Request-ID Middleware
// - Serve als Einstiegspunkt fuer cmd/serve
package server

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/latentforge/latentforge/diffusion"
	"github.com/latentforge/latentforge/envconfig"
	"github.com/latentforge/latentforge/version"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// ImageGenerator is the part of the diffusion pipeline the server drives.
// *diffusion.Pipeline implements it.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, config *diffusion.GenerateConfig, onProgress diffusion.ProgressFunc) ([]image.Image, error)
}

// Server exposes one generator over the HTTP API.
type Server struct {
	generator ImageGenerator
}

func NewServer(generator ImageGenerator) *Server {
	return &Server{generator: generator}
}

// requestIDMiddleware tags every request with a UUID for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// GenerateRoutes baut den Router mit allen API-Endpunkten
func (s *Server) GenerateRoutes() http.Handler {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "User-Agent", "Accept", "X-Requested-With"}
	config.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.Use(cors.New(config), requestIDMiddleware())

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "latentforge is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "latentforge is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	r.GET("/api/schedulers", s.SchedulersHandler)
	r.POST("/api/generate", s.GenerateHandler)

	return r
}

// Serve blockiert und bedient die API auf dem Listener
func Serve(ln net.Listener, generator ImageGenerator) error {
	level := envconfig.LogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))

	s := NewServer(generator)
	srv := &http.Server{Handler: s.GenerateRoutes()}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	return srv.Serve(ln)
}
