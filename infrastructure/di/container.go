// Package di wires the application together. wire_gen.go is produced by
// google/wire from the provider set in wire.go.
package di

import (
	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/application/services"
	"taskdeps/infrastructure/config"
	ws "taskdeps/interfaces/websocket"
	"taskdeps/pkg/auth"
	"taskdeps/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	EdgeRepo  ports.EdgeRepository
	Tasks     ports.TaskReader
	Locker    ports.ProjectLocker
	EventBus  ports.EventBus
	Limits    ports.LimitsProvider
	Metrics   *observability.Collector
	Validator *auth.JWTValidator
	Hub       *ws.Hub
	WSServer  *ws.Server
	Service   *services.DependencyService
}
