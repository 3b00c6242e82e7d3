package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"example.com/socialfeed/internal/auth"
	"example.com/socialfeed/internal/blob"
	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/directory"
	"example.com/socialfeed/internal/engagement"
	"example.com/socialfeed/internal/feed"
	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/metrics"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/posts"
	"example.com/socialfeed/internal/store"
	"github.com/gorilla/mux"
)

// Options carries the HTTP-level settings of the API.
type Options struct {
	JWTSecret      string
	JWTTTL         time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   float64(cfg.RateLimitRPS),
		RateLimitBurst: cfg.RateLimitBurst,
	}
}

type Server struct {
	store   store.StoreInterface
	blobs   blob.Store
	auth    *auth.Service
	dir     *directory.Directory
	posts   *posts.Service
	feed    *feed.Assembler
	engine  *engagement.Engine
	events  *appkafka.Publisher
	limiter *middleware.RateLimiter
	opts    Options
}

var logg = logger.New()

// New wires the components over one store, blob backend and activity writer.
// A nil writer disables activity events.
func New(st store.StoreInterface, blobs blob.Store, writer appkafka.KafkaWriter, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	postSvc := posts.New(st, blobs)
	s := &Server{
		store:   st,
		blobs:   blobs,
		auth:    auth.New(st, opts.JWTSecret, opts.JWTTTL),
		dir:     directory.New(st, blobs),
		posts:   postSvc,
		feed:    feed.New(st, postSvc, blobs),
		engine:  engagement.New(st, st, blobs),
		limiter: middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		opts:    opts,
	}
	if writer != nil {
		s.events = appkafka.NewPublisher(writer)
	}
	return s
}

// Routes builds the router. Mutating routes are rate limited per caller.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLog, middleware.Metrics, middleware.CORS(s.opts.CORSOrigins))

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.JWTAuth(s.auth)(h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return middleware.JWTAuth(s.auth)(s.limiter.Handler(h))
	}

	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", s.limitedPublic(s.registerHandler)).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.limitedPublic(s.loginHandler)).Methods(http.MethodPost)
	api.Handle("/auth/me", authed(s.meHandler)).Methods(http.MethodGet)

	api.HandleFunc("/users", s.listUsersHandler).Methods(http.MethodGet)
	api.Handle("/users/profile", limited(s.updateProfileHandler)).Methods(http.MethodPut)
	api.Handle("/users/follow/{id}", limited(s.followHandler)).Methods(http.MethodPut)
	api.Handle("/users/unfollow/{id}", limited(s.unfollowHandler)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", s.getUserHandler).Methods(http.MethodGet)

	// fixed segments are registered before /posts/{id}
	api.HandleFunc("/posts", s.globalFeedHandler).Methods(http.MethodGet)
	api.Handle("/posts", limited(s.createPostHandler)).Methods(http.MethodPost)
	api.Handle("/posts/feed", authed(s.feedHandler)).Methods(http.MethodGet)
	api.HandleFunc("/posts/user/{id}", s.userPostsHandler).Methods(http.MethodGet)
	api.Handle("/posts/like/{id}", limited(s.likeHandler)).Methods(http.MethodPut)
	api.Handle("/posts/unlike/{id}", limited(s.unlikeHandler)).Methods(http.MethodPut)
	api.Handle("/posts/comment/{id}", limited(s.addCommentHandler)).Methods(http.MethodPost)
	api.Handle("/posts/comment/{id}/{comment_id}", limited(s.deleteCommentHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/posts/{id}", s.getPostHandler).Methods(http.MethodGet)
	api.Handle("/posts/{id}", limited(s.updatePostHandler)).Methods(http.MethodPut)
	api.Handle("/posts/{id}", limited(s.deletePostHandler)).Methods(http.MethodDelete)

	api.Handle("/notifications", authed(s.notificationsHandler)).Methods(http.MethodGet)

	// preflight requests are answered by the CORS middleware
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if local, ok := s.blobs.(*blob.LocalStorage); ok {
		prefix := uploadsPath(local.PublicURL())
		r.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix+"/", http.FileServer(http.Dir(local.Root()))))
	}
	return r
}

func (s *Server) limitedPublic(h http.HandlerFunc) http.HandlerFunc {
	return s.limiter.Handler(h).ServeHTTP
}

// uploadsPath returns the path part of the public blob URL.
func uploadsPath(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Path == "" {
		return "/uploads"
	}
	return u.Path
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
// TLS is used when both certificate and key are configured.
func Run(ctx context.Context, st store.StoreInterface, blobs blob.Store, writer appkafka.KafkaWriter, cfg *config.Config) {
	s := New(st, blobs, writer, OptionsFromConfig(cfg))

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	s.limiter.StartSweeper(time.Minute, stopSweep)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // uploads
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+cfg.ServerAddr)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
	if err := s.events.Close(); err != nil {
		logg.Error("server", "Error closing Kafka writer", err)
	}
}
