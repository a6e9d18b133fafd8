package http

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/ota-server/internal/domain/build"
	"github.com/oshokin/ota-server/internal/domain/update"
	"github.com/oshokin/ota-server/internal/integrity"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	CheckUpdate(ctx context.Context, currentID string) (*update.Decision, error)
	ValidateChecksum(ctx context.Context, id, provided string) (integrity.Validation, error)
	GetBuild(ctx context.Context, id string) (build.Record, error)
	ListBuilds(ctx context.Context) (*build.Document, error)
	PackageChecksum(ctx context.Context, filename string) (update.ChecksumInfo, error)
	OpenPackage(ctx context.Context, filename string) (*os.File, error)
	PublicKeyPEM(ctx context.Context) (string, error)
	UpsertBuild(ctx context.Context, input update.UpsertInput) (build.UpsertOutcome, build.Record, error)
	DeleteBuild(ctx context.Context, id string) (string, error)
	Authenticate(ctx context.Context, token string) (string, error)
	GenerateKey(ctx context.Context, name string) (string, error)
	RevokeKey(ctx context.Context, name string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// Server implements the JSON HTTP API over the provided service.
type Server struct {
	// service provides the business logic for all operations.
	service Service
	// engine is the configured gin router.
	engine *gin.Engine
}

// NewServer wires the provided service implementation into an HTTP handler.
func NewServer(service Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		service: service,
		engine:  engine,
	}

	s.routes()

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// routes registers all endpoints. Everything except the health probe sits
// behind the bearer gate.
func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := s.authRequired()

	v1 := s.engine.Group("/v1", authed)
	{
		v1.POST("/check-update", s.handleCheckUpdate)
		v1.POST("/validate-checksum", s.handleValidateChecksum)
		v1.GET("/builds", s.handleListBuilds)
		v1.GET("/builds/:build_id", s.handleGetBuild)
		v1.GET("/checksum/:filename", s.handlePackageChecksum)
		v1.GET("/public-key", s.handlePublicKey)
	}

	s.engine.GET("/packages/:filename", authed, s.handleDownloadPackage)

	admin := s.engine.Group("/admin", authed)
	{
		admin.POST("/builds", s.handleUpsertBuild)
		admin.DELETE("/builds/:build_id", s.handleDeleteBuild)
		admin.GET("/keys", s.handleListKeys)
		admin.POST("/keys", s.handleGenerateKey)
		admin.DELETE("/keys/:name", s.handleRevokeKey)
	}
}
