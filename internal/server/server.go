package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rei1007/daigakuhai-support/internal/config"
	"github.com/rei1007/daigakuhai-support/internal/refdata"
)

// stateDispatcher is the room mutation authority the gateway talks to.
// Connect runs the registration inside the dispatcher's goroutine, so the
// welcome snapshot and the registration are atomic against mutations.
type stateDispatcher interface {
	Connect(sessionID string, register func(welcome []byte) error) error
	Dispatch(raw []byte, sessionID string)
}

// sessionRegistry tracks live websocket sessions.
type sessionRegistry interface {
	Register(sessionID string, conn *websocket.Conn, welcome []byte) error
	Unregister(sessionID string)
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	dispatcher  stateDispatcher
	broadcaster sessionRegistry
	refData     refdata.Provider
	redisClient *goredis.Client
	db          *pgxpool.Pool
	limits      *ConnectionLimits
	startTime   time.Time
}

// NewServer wires the HTTP shell. db may be nil when no database is configured.
func NewServer(cfg *config.Config, dispatcher stateDispatcher, broadcaster sessionRegistry, refData refdata.Provider, redisClient *goredis.Client, db *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		refData:     refData,
		redisClient: redisClient,
		db:          db,
		limits:      NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.ConnectsPerSecond, cfg.ConnectsBurst),
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
