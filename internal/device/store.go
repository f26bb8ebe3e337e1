package device

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/spouty/spouty/internal/config"
	"github.com/spouty/spouty/internal/database"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendDynamoDB  = "dynamodb"
)

// DefaultDeviceID is used when DEVICE_ID is unset.
const DefaultDeviceID = "spouty"

// IDFromEnv returns the device ID the relay serves.
func IDFromEnv() string {
	return config.String("DEVICE_ID", DefaultDeviceID)
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Backend string

	FirestoreProjectID       string
	FirestoreCredentialsJSON string
	FirestoreCollection      string

	DynamoDBTable string

	Database database.Config
}

// StoreConfigFromEnv reads the store configuration from the environment.
func StoreConfigFromEnv() StoreConfig {
	return StoreConfig{
		Backend:                  config.String("STORE_BACKEND", BackendFirestore),
		FirestoreProjectID:       config.String("FIRESTORE_PROJECT_ID", config.String("GOOGLE_CLOUD_PROJECT", "")),
		FirestoreCredentialsJSON: config.String("FIREBASE_CREDENTIALS_JSON", ""),
		FirestoreCollection:      config.String("FIRESTORE_COLLECTION", DefaultFirestoreCollection),
		DynamoDBTable:            config.String("DYNAMODB_DEVICE_TABLE", "spouty-devices"),
		Database:                 database.ConfigFromEnv(),
	}
}

// Store is an opened repository plus the function that releases it.
type Store struct {
	Repository Repository
	Backend    string
	closeFn    func() error
}

// Close releases the underlying client or pool.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg StoreConfig, logger zerolog.Logger) (*Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		logger.Warn().Msg("using in-memory device store, data is lost on restart")
		return &Store{Repository: NewInMemoryRepository(), Backend: cfg.Backend}, nil

	case BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("connected to postgres device store")
		return &Store{
			Repository: repo,
			Backend:    cfg.Backend,
			closeFn: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case BackendFirestore:
		var opts []option.ClientOption
		if cfg.FirestoreCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirestoreCredentialsJSON)))
		}
		projectID := cfg.FirestoreProjectID
		if projectID == "" {
			projectID = firestore.DetectProjectID
		}
		client, err := firestore.NewClient(ctx, projectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		logger.Info().Str("collection", cfg.FirestoreCollection).Msg("connected to firestore device store")
		return &Store{
			Repository: NewFirestoreRepository(client, cfg.FirestoreCollection),
			Backend:    cfg.Backend,
			closeFn:    client.Close,
		}, nil

	case BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		logger.Info().Str("table", cfg.DynamoDBTable).Msg("using dynamodb device store")
		return &Store{
			Repository: NewDynamoDBRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable),
			Backend:    cfg.Backend,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
