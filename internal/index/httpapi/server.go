// Package httpapi exposes the index services as a JSON API over echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/services"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type AuthService interface {
	Challenge(ctx context.Context, wallet string) (*services.Challenge, error)
	Login(ctx context.Context, wallet, signature string) (string, *models.User, error)
	Authenticate(token string) (auth.Identity, error)
}

type FileService interface {
	Insert(ctx context.Context, id auth.Identity, in models.NewUpload) (*models.UploadRecord, error)
	List(ctx context.Context, id auth.Identity, limit, offset int) ([]models.UploadRecord, error)
	Get(ctx context.Context, id auth.Identity, fileID string) (*models.UploadRecord, error)
	Delete(ctx context.Context, id auth.Identity, fileID string) error
	Stats(ctx context.Context, id auth.Identity) (*models.Stats, error)
}

type ShareService interface {
	Create(ctx context.Context, id auth.Identity, in models.NewShareLink) (*models.ShareLink, error)
	ListForFile(ctx context.Context, id auth.Identity, fileID string) ([]models.ShareLink, error)
	Delete(ctx context.Context, id auth.Identity, shareID string) error
	Resolve(ctx context.Context, key, password string) (*services.ResolvedShare, error)
}

type Server struct {
	address string
	echo    *echo.Echo
	auth    AuthService
	files   FileService
	shares  ShareService
	logger  logging.Logger
}

func NewServer(address string, a AuthService, f FileService, s ShareService, l logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	srv := &Server{
		address: address,
		echo:    e,
		auth:    a,
		files:   f,
		shares:  s,
		logger:  l.With("module", "http_server"),
	}
	e.HTTPErrorHandler = srv.errorHandler
	srv.routes()
	return srv
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.POST("/auth/challenge", s.challenge)
	api.POST("/auth/login", s.login)
	api.GET("/share", s.resolveShare)

	private := api.Group("", s.requireToken)
	private.POST("/files", s.insertFile)
	private.GET("/files", s.listFiles)
	private.GET("/files/:id", s.getFile)
	private.DELETE("/files/:id", s.deleteFile)
	private.GET("/files/:id/shares", s.listShares)
	private.GET("/stats", s.stats)
	private.POST("/share", s.createShare)
	private.DELETE("/share/:id", s.deleteShare)
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
