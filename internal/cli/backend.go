package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/catalog/dynamo"
	"github.com/jacentio/shelf/catalog/memstore"
	"github.com/jacentio/shelf/internal/config"
)

// Backend opens the store selected by configuration. The underlying store or
// client is created once and shared by every caller.
type Backend struct {
	cfg *config.Config

	once   sync.Once
	client *dynamodb.Client
	store  catalog.Store
	err    error
}

// NewBackend creates a Backend for cfg.
func NewBackend(cfg *config.Config) *Backend {
	return &Backend{cfg: cfg}
}

func (b *Backend) init(ctx context.Context) {
	b.once.Do(func() {
		switch b.cfg.Store.Backend {
		case config.BackendMemory:
			b.store = memstore.New()
		case config.BackendDynamoDB:
			b.client, b.err = NewDynamoDBClient(ctx, b.cfg.AWS)
			if b.err == nil {
				b.store = dynamo.New(b.client, b.cfg.DynamoConfig())
			}
		default:
			b.err = fmt.Errorf("unknown backend %q", b.cfg.Store.Backend)
		}
	})
}

// Store opens the catalog store.
func (b *Backend) Store(ctx context.Context) (catalog.Store, error) {
	b.init(ctx)
	return b.store, b.err
}

// Admin opens the DynamoDB client for table management. It fails for the
// memory backend.
func (b *Backend) Admin(ctx context.Context) (dynamo.TableAdmin, error) {
	b.init(ctx)
	if b.err != nil {
		return nil, b.err
	}
	if b.client == nil {
		return nil, fmt.Errorf("backend %q has no tables", b.cfg.Store.Backend)
	}
	return b.client, nil
}

// NewDynamoDBClient builds a DynamoDB client from the default credential chain,
// honoring the configured region, profile and endpoint override.
func NewDynamoDBClient(ctx context.Context, cfg config.AWSConfig) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
