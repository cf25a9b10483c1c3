package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskdeps/application/ports"
	"taskdeps/application/services"
	"taskdeps/infrastructure/config"
	"taskdeps/infrastructure/messaging"
	"taskdeps/infrastructure/messaging/eventbridge"
	dynamostore "taskdeps/infrastructure/persistence/dynamodb"
	memorystore "taskdeps/infrastructure/persistence/memory"
	ws "taskdeps/interfaces/websocket"
	"taskdeps/pkg/auth"
	"taskdeps/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideEdgeRepository selects the edge store for the configured backend
func ProvideEdgeRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.EdgeRepository {
	if cfg.StorageBackend == "dynamodb" {
		return dynamostore.NewEdgeStore(client, dynamostore.TableConfig{
			TableName:     cfg.DynamoDBTable,
			EdgeIndexName: cfg.EdgeIndexName,
			TaskIndexName: cfg.TaskIndexName,
			DepIndexName:  cfg.DepIndexName,
		}, logger)
	}
	return memorystore.NewEdgeStore()
}

// ProvideTaskReader selects the task reader for the configured backend
func ProvideTaskReader(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.TaskReader {
	if cfg.StorageBackend == "dynamodb" {
		return dynamostore.NewTaskReader(client, cfg.DynamoDBTable, logger)
	}
	return memorystore.NewTaskStore()
}

// ProvideProjectLocker selects the project locker for the configured backend
func ProvideProjectLocker(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.ProjectLocker {
	if cfg.StorageBackend == "dynamodb" {
		return dynamostore.NewProjectLock(client, cfg.LockTable, logger)
	}
	return memorystore.NewProjectLock()
}

// ProvideHub creates the WebSocket hub and starts its event loop
func ProvideHub(logger *zap.Logger) *ws.Hub {
	hub := ws.NewHub(logger)
	go hub.Run()
	return hub
}

// ProvideEventBus fans events out to EventBridge and connected clients.
// Without an EventBridge bus configured only the WebSocket sink runs.
func ProvideEventBus(cfg *config.Config, client *awseventbridge.Client, hub *ws.Hub, logger *zap.Logger) ports.EventBus {
	sinks := []ports.EventBus{ws.NewNotifier(hub)}
	if cfg.StorageBackend == "dynamodb" && cfg.EventBusName != "" {
		sinks = append(sinks, eventbridge.NewPublisher(client, cfg.EventBusName, logger))
	}
	return messaging.NewCompositeBus(logger, sinks...)
}

// ProvideLimitsProvider starts the limits watcher when a limits file is
// configured, defaults otherwise
func ProvideLimitsProvider(cfg *config.Config, logger *zap.Logger) (ports.LimitsProvider, error) {
	if cfg.LimitsFile == "" {
		return config.NewStaticLimits(config.DefaultLimits), nil
	}
	watcher, err := config.NewLimitsWatcher(cfg.LimitsFile, logger)
	if err != nil {
		return nil, err
	}
	watcher.Start()
	return watcher, nil
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("taskdeps")
}

// ProvideJWTValidator creates the validator, or nil when no secret is
// configured (development only; Validate rejects that in production)
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideWSServer creates the WebSocket upgrade handler
func ProvideWSServer(hub *ws.Hub, validator *auth.JWTValidator, logger *zap.Logger) *ws.Server {
	return ws.NewServer(hub, validator, logger)
}

// ProvideDependencyService wires the application service
func ProvideDependencyService(
	edges ports.EdgeRepository,
	tasks ports.TaskReader,
	locker ports.ProjectLocker,
	eventBus ports.EventBus,
	limits ports.LimitsProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.DependencyService {
	return services.NewDependencyService(edges, tasks, locker, eventBus, limits, metrics, logger)
}
