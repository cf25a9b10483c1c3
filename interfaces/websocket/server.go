package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"taskdeps/domain/core/valueobjects"
	"taskdeps/pkg/auth"
)

// maxConnectionsPerProject caps subscribers per project to keep one noisy
// board from exhausting the hub.
const maxConnectionsPerProject = 100

// Server handles WebSocket upgrade requests
type Server struct {
	hub       *Hub
	upgrader  websocket.Upgrader
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// NewServer creates a new WebSocket server. A nil validator disables
// authentication, which only the development setup uses.
func NewServer(hub *Hub, validator *auth.JWTValidator, logger *zap.Logger) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is delegated to the edge proxy
				return true
			},
		},
		validator: validator,
		logger:    logger,
	}
}

// HandleWebSocket upgrades the connection and subscribes it to the
// project named in the query string.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.validator != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
		}
		if _, err := s.validator.ValidateToken(token); err != nil {
			s.logger.Warn("WebSocket authentication failed",
				zap.Error(err),
				zap.String("remoteAddr", r.RemoteAddr),
			)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	projectID, err := valueobjects.NewProjectIDFromString(r.URL.Query().Get("project"))
	if err != nil {
		http.Error(w, "project query parameter is required", http.StatusBadRequest)
		return
	}

	if s.hub.GetConnectionCount(projectID.String()) >= maxConnectionsPerProject {
		s.logger.Warn("Connection limit exceeded for project",
			zap.String("projectID", projectID.String()),
		)
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(projectID.String(), s.hub, conn, s.logger)
	client.Start()

	s.logger.Info("New WebSocket connection established",
		zap.String("projectID", projectID.String()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}
