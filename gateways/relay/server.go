package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	config "github.com/cuecard/backend/config/relay"
	firebaseClient "github.com/cuecard/backend/gateways/relay/clients/firebase"
	googleClient "github.com/cuecard/backend/gateways/relay/clients/google"
	slidesClient "github.com/cuecard/backend/gateways/relay/clients/slides"
	"github.com/cuecard/backend/gateways/relay/events"
	"github.com/cuecard/backend/gateways/relay/handler"
	"github.com/cuecard/backend/gateways/relay/notes"
	"github.com/cuecard/backend/pkg/gen"
	authstorage "github.com/cuecard/backend/services/auth/storage"
	authusecase "github.com/cuecard/backend/services/auth/usecase"
	teleusecase "github.com/cuecard/backend/services/teleprompter/usecase"
)

// Server is the local relay the extension, the desktop app and the terminal
// prompter all talk to. It binds to loopback only.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	auth    authusecase.Usecase
	monitor *notes.Monitor
	hub     *events.Hub
	handler *handler.Handler
}

func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	log.Info("creating relay server", slog.Int("port", cfg.Port))

	db, err := authstorage.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	store, err := authstorage.New(db)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	log.Debug("token store ready", slog.String("path", cfg.StorePath))

	firebase := firebaseClient.New(firebaseClient.Config{
		APIKey:    cfg.Firebase.APIKey,
		ProjectID: cfg.Firebase.ProjectID,
	}, log)
	google := googleClient.New(googleClient.Config{}, log)

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", cfg.Port)
	auth := authusecase.New(authusecase.Config{RedirectURI: redirectURI}, store, firebase, google, log)

	slides := slidesClient.New(slidesClient.Config{}, log)
	monitor := notes.NewMonitor(slides, auth, log)
	hub := events.NewHub(gen.UUID(), log)

	h := handler.New(auth, teleusecase.New(), monitor, hub, log)

	log.Info("relay server instance created")
	return &Server{
		cfg:     cfg,
		log:     log,
		auth:    auth,
		monitor: monitor,
		hub:     hub,
		handler: h,
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.auth.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap auth state: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.handler.RegisterRoutes(router)

	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// No read/write deadlines: the event socket stays open for the whole
		// presentation.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("relay listening", slog.String("address", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.log.Info("shutting down relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
			srv.Close()
			return fmt.Errorf("failed to gracefully shutdown server: %w", err)
		}
	}

	s.log.Info("relay stopped cleanly")
	return nil
}
