package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photohub/internal/auth"
	"photohub/internal/logging"
	"photohub/internal/models"
	"photohub/internal/service"
	"photohub/internal/storage"
)

// Deps are the use cases the HTTP layer dispatches to.
type Deps struct {
	Photos  *service.PhotoService
	Filters *service.FilterService
	Users   *service.UserService
	Tags    *storage.TagRepository
}

type Server struct {
	cfg     *models.Config
	router  *gin.Engine
	http    *http.Server
	photos  *service.PhotoService
	filters *service.FilterService
	users   *service.UserService
	tags    *storage.TagRepository
	limiter *auth.RateLimiter
}

func NewServer(cfg *models.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUpload

	s := &Server{
		cfg:     cfg,
		router:  r,
		photos:  deps.Photos,
		filters: deps.Filters,
		users:   deps.Users,
		tags:    deps.Tags,
		limiter: auth.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
	}
	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.Use(gin.Recovery(), requestID(), requestLogger(), recordMetrics(), cors())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	photos := api.Group("/photos")
	photos.GET("", s.handleListPhotos)
	photos.POST("", s.handleUploadPhoto)
	photos.PATCH("", s.handleUpdateStatus)
	photos.GET("/:id", s.handleGetPhoto)
	photos.DELETE("/:id", s.handleDeletePhoto)
	photos.GET("/tags/:id", s.handleGetPhotoTags)
	photos.PATCH("/tags", s.handleAddPhotoTag)
	photos.PATCH("/tags/mass", s.handleAddPhotoTags)

	tags := api.Group("/tags")
	tags.GET("", s.handleListTags)
	tags.GET("/raw", s.handleRawTags)
	tags.GET("/:id", s.handleGetTag)
	tags.POST("", s.handleCreateTag)

	filters := api.Group("/filters")
	filters.GET("/metadata/:id", s.handleMetadata)
	filters.PATCH("", s.handleApplyFilter)
	filters.POST("/async", s.handleApplyFilterAsync)

	images := api.Group("/getimage")
	images.GET("/:id", s.handleGetImage)
	images.GET("/:id/filter/:name", s.handleGetImage)
	images.GET("/profile/:email/:file", s.handleGetProfileImage)

	limited := rateLimit(s.limiter)
	users := api.Group("/users")
	users.POST("/register", limited, s.handleRegister)
	users.POST("/login", limited, s.handleLogin)

	authed := users.Group("", requireAuth(s.users))
	authed.GET("", s.handleListUsers)
	authed.GET("/:id", s.handleGetUser)
	authed.PUT("/:id", s.handleUpdateUser)
	authed.DELETE("/:id", s.handleDeleteUser)
	authed.PUT("/:id/password", s.handleChangePassword)

	profile := api.Group("/profile", requireAuth(s.users))
	profile.GET("", s.handleGetProfile)
	profile.PATCH("", s.handleUpdateProfile)
	profile.POST("", s.handleUploadProfilePhoto)
	profile.GET("/logout", s.handleLogout)
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called.
func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.cfg.ServerAddr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the rate limiter janitor and the listener, and shuts the
// listener down when ctx ends.
func (s *Server) Run(ctx context.Context) error {
	go s.limiter.RunCleanup(ctx, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
