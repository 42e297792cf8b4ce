// Package http exposes the account API over HTTP using gin.
package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const shutdownTimeout = 5 * time.Second

// UserService is the part of services.UserService the handlers need.
type UserService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Register(ctx context.Context, email string, name *string, password string) (*models.User, error)
	ResolveUser(ctx context.Context, token string) (*models.User, error)
	RequireSuperuser(user *models.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
}

type HTTPServer struct {
	address string
	prefix  string
	origins []string
	users   UserService
	db      *sql.DB
	logger  logging.Logger
}

// NewHTTPServer builds the server. db may be nil, in which case requests run
// without a scoped connection and /health reports the database as unavailable.
func NewHTTPServer(cfg *config.Config, l logging.Logger, us UserService, db *sql.DB) *HTTPServer {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	registerValidators()

	return &HTTPServer{
		address: cfg.EndpointAddrHTTP,
		prefix:  cfg.APIPrefix,
		origins: cfg.CORSAllowedOrigins,
		users:   us,
		db:      db,
		logger:  l.With("module", "http_server"),
	}
}

// Router assembles the gin engine with all middleware and routes.
func (s *HTTPServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	if len(s.origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
		if err := corsConfig.Validate(); err != nil {
			s.logger.Warn(context.Background(), "CORS disabled", "error", err)
		} else {
			router.Use(cors.New(corsConfig))
		}
	}

	router.GET("/health", s.health)

	api := router.Group(s.prefix)
	if s.db != nil {
		api.Use(s.dbSession())
	}
	{
		api.POST("/login/", s.login)
		api.POST("/create/user/", s.createUser)

		authed := api.Group("", s.requireUser())
		{
			authed.GET("/logout", s.logout)
			authed.GET("/users/me", s.me)
			authed.PATCH("/users/:id/active", s.requireSuperuser(), s.setActive)
		}
	}

	return router
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
