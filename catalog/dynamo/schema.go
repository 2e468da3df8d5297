package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableAdmin is the subset of the DynamoDB client used to manage tables.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// TableWaitTimeout bounds how long CreateTables waits for a table to become active.
var TableWaitTimeout = 2 * time.Minute

// TableNames returns every table a Store built from cfg uses: the four entity
// tables, then the reference and unique constraint tables.
func TableNames(cfg Config) []string {
	cfg = cfg.resolve()
	return []string{
		cfg.Tables.Genres,
		cfg.Tables.Authors,
		cfg.Tables.Books,
		cfg.Tables.Instances,
		cfg.Store.RelationshipTable,
		cfg.Store.UniqueTable,
	}
}

// CreateTables creates the tables for cfg and waits for them to become active.
// Tables that already exist are left alone. Entity tables get a stream with old
// and new images, which the delete auditor consumes, and TTL on "ttl".
func CreateTables(ctx context.Context, client TableAdmin, cfg Config) ([]string, error) {
	cfg = cfg.resolve()
	entityTables := []string{cfg.Tables.Genres, cfg.Tables.Authors, cfg.Tables.Books, cfg.Tables.Instances}

	var created []string
	create := func(in *dynamodb.CreateTableInput) error {
		_, err := client.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", aws.ToString(in.TableName), err)
		}
		created = append(created, aws.ToString(in.TableName))
		return nil
	}

	for _, name := range entityTables {
		err := create(&dynamodb.CreateTableInput{
			TableName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			StreamSpecification: &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeNewAndOldImages,
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			return created, err
		}
	}

	if err := create(keyedTable(cfg.Store.RelationshipTable, "pk", "child_ref")); err != nil {
		return created, err
	}
	if err := create(keyedTable(cfg.Store.UniqueTable, "pk", "sk")); err != nil {
		return created, err
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	for _, name := range TableNames(cfg) {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, TableWaitTimeout); err != nil {
			return created, fmt.Errorf("wait for table %s: %w", name, err)
		}
	}

	for _, name := range created {
		if !slices.Contains(entityTables, name) {
			continue
		}
		_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(name),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String("ttl"),
				Enabled:       aws.Bool(true),
			},
		})
		if err != nil {
			return created, fmt.Errorf("enable ttl on %s: %w", name, err)
		}
	}

	return created, nil
}

// DeleteTables deletes every table for cfg. Missing tables are skipped; the
// first other failure is returned after all deletes were attempted.
func DeleteTables(ctx context.Context, client TableAdmin, cfg Config) error {
	var errs []error
	for _, name := range TableNames(cfg) {
		_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
		var missing *types.ResourceNotFoundException
		if err != nil && !errors.As(err, &missing) {
			errs = append(errs, fmt.Errorf("delete table %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func keyedTable(name, hash, rangeKey string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hash), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(rangeKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}
