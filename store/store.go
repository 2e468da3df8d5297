package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/shelf/internal/shard"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the Store.
// *dynamodb.Client satisfies it.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

const (
	// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
	maxTransactItems = 100

	// maxBatchGetKeys is the DynamoDB limit on keys per BatchGetItem call.
	maxBatchGetKeys = 100

	maxBatchAttempts = 5

	constraintSK = "CONSTRAINT"
)

// errChildFound stops the shard fan-out in HasActiveChildren once any child turns up.
var errChildFound = errors.New("child found")

// Store provides DynamoDB operations with referential integrity support.
type Store struct {
	client   DynamoDBAPI
	config   Config
	registry *Registry
}

// New creates a new Store instance.
func New(client DynamoDBAPI, config Config) *Store {
	return &Store{
		client: client,
		config: config.normalized(),
	}
}

// NewWithRegistry creates a new Store instance with a relationship registry.
// Deletes of entity types that have Restrict relationships are orphan-protected
// automatically.
func NewWithRegistry(client DynamoDBAPI, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// SetRegistry sets the relationship registry.
func (s *Store) SetRegistry(registry *Registry) {
	s.registry = registry
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// referencePK computes the sharded partition key for a reference record.
func (s *Store) referencePK(parentRef, childRef string) string {
	return shard.ReferencePK(parentRef, childRef, s.config.NumShards)
}

// Create creates a new entity with reference validation and unique constraints,
// all in one transaction.
func (s *Store) Create(ctx context.Context, entity Entity, item map[string]types.AttributeValue) error {
	now := time.Now()
	nowISO := now.UTC().Format(time.RFC3339Nano)

	// reasons[i] is what a ConditionalCheckFailed on items[i] means.
	var items []types.TransactWriteItem
	var reasons []error

	// 1. Reference existence checks; restricting parents also count the child
	refs := collectReferences(entity)
	var counted []counter
	for _, ref := range refs {
		if ref.Check == nil {
			continue
		}
		if s.counts(entity, ref) {
			items = append(items, s.countedReference(ref.Check, now))
			counted = append(counted, counter{ParentRef: ref.ParentRef, Table: ref.Check.TableName, Key: ref.Check.Key})
		} else {
			items = append(items, s.referenceCheck(ref.Check, now))
		}
		reasons = append(reasons, &ReferenceError{Field: ref.Field, ParentRef: ref.ParentRef})
	}

	// 2. Managed fields
	item["entity_ref"] = &types.AttributeValueMemberS{Value: entity.EntityRef()}
	item["version"] = &types.AttributeValueMemberN{Value: "1"}
	item["created_at"] = &types.AttributeValueMemberS{Value: nowISO}
	item["updated_at"] = &types.AttributeValueMemberS{Value: nowISO}
	if len(refs) > 0 {
		item["_refs"] = stringList(parentRefs(refs))
	}
	if len(counted) > 0 {
		item[countedAttr] = countersValue(counted)
	}

	// 3. Unique constraints
	if uf, ok := entity.(UniqueFielder); ok {
		fields := uf.UniqueFields()
		var uniquePKs []string
		for _, field := range sortedKeys(fields) {
			pk := shard.UniqueKey(entity.TableName(), entity.EntityType(), field, fields[field])
			uniquePKs = append(uniquePKs, pk)
			items = append(items, s.uniquePut(entity, pk, field, fields[field], now))
			reasons = append(reasons, &UniqueError{Field: field})
		}
		if len(uniquePKs) > 0 {
			item["_unique_pks"] = stringList(uniquePKs)
		}
	}

	// 4. Entity put
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(entity.TableName()),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	reasons = append(reasons, ErrAlreadyExists)

	// 5. Reference rows
	for _, ref := range refs {
		items = append(items, s.referencePut(entity, ref))
		reasons = append(reasons, nil)
	}

	if len(items) > maxTransactItems {
		return fmt.Errorf("create %s: %d actions: %w", entity.EntityRef(), len(items), ErrTooManyItems)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, reasons)
}

// Get retrieves an entity by key, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, ErrNotFound
	}
	return s.unmarshalItem(result.Item), nil
}

// Scan lists every live item of a table with automatic TTL filtering.
// Order is unspecified; callers sort.
func (s *Store) Scan(ctx context.Context, input ScanInput) ([]*Item, error) {
	live := LiveAt(time.Now())
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(input.TableName),
		FilterExpression:          aws.String(live.And(input.FilterExpression)),
		ExpressionAttributeNames:  live.Names(input.ExpressionAttributeNames),
		ExpressionAttributeValues: live.Values(input.ExpressionAttributeValues),
		ConsistentRead:            aws.Bool(true),
	})

	var items []*Item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, s.unmarshalItem(raw))
		}
	}
	return items, nil
}

// BatchGet fetches many items of one table by key. Missing and deleted items are
// skipped. Keys must be distinct.
func (s *Store) BatchGet(ctx context.Context, table string, keys []PK) ([]*Item, error) {
	var items []*Item
	for start := 0; start < len(keys); start += maxBatchGetKeys {
		end := min(start+maxBatchGetKeys, len(keys))
		pending := make([]map[string]types.AttributeValue, 0, end-start)
		for _, k := range keys[start:end] {
			pending = append(pending, k)
		}

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchAttempts {
				return nil, fmt.Errorf("batch get %s: %d keys left unprocessed", table, len(pending))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
				}
			}

			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					table: {Keys: pending, ConsistentRead: aws.Bool(true)},
				},
			})
			if err != nil {
				return nil, err
			}
			for _, raw := range out.Responses[table] {
				if !IsDeleted(raw) {
					items = append(items, s.unmarshalItem(raw))
				}
			}
			pending = nil
			if unprocessed, ok := out.UnprocessedKeys[table]; ok {
				pending = unprocessed.Keys
			}
		}
	}
	return items, nil
}

// Update updates an entity with optimistic locking.
// If the entity's references or unique fields changed, the affected reference rows
// and constraint rows are swapped in the same transaction as the entity update.
func (s *Store) Update(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) error {
	_, hasRefs := entity.(Referencer)
	_, hasUnique := entity.(UniqueFielder)
	if !hasRefs && !hasUnique {
		return s.updateSimple(ctx, entity, item, expectedVersion)
	}
	return s.updateTracked(ctx, entity, item, expectedVersion)
}

// updateSimple performs a basic update without reference or unique constraint handling.
func (s *Store) updateSimple(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) error {
	names, values := updateExprBase(expectedVersion)
	clauses := buildSetClauses(item, names, values)
	clauses = append(clauses, "#updated_at = :updated_at", "#version = #version + :one")

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(entity.TableName()),
		Key:                       entity.GetKey(),
		UpdateExpression:          aws.String("SET " + strings.Join(clauses, ", ")),
		ConditionExpression:       aws.String(versionCondition()),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return err
	}
	return nil
}

// updateTracked handles updates where references or unique fields may have changed.
func (s *Store) updateTracked(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) error {
	current, err := s.Get(ctx, entity.TableName(), entity.GetKey())
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrConcurrentModification
	}

	now := time.Now()
	var items []types.TransactWriteItem
	var reasons []error

	// References: check and add new edges, drop stale ones. Child counts
	// follow the edges.
	refs := collectReferences(entity)
	oldRefs := toSet(current.References)
	newRefs := toSet(parentRefs(refs))
	var counted []counter
	for _, c := range current.counted {
		if newRefs[c.ParentRef] {
			counted = append(counted, c)
		}
	}
	for _, ref := range refs {
		if oldRefs[ref.ParentRef] {
			continue
		}
		switch {
		case s.counts(entity, ref):
			items = append(items, s.countedReference(ref.Check, now))
			reasons = append(reasons, &ReferenceError{Field: ref.Field, ParentRef: ref.ParentRef})
			counted = append(counted, counter{ParentRef: ref.ParentRef, Table: ref.Check.TableName, Key: ref.Check.Key})
		case ref.Check != nil:
			items = append(items, s.referenceCheck(ref.Check, now))
			reasons = append(reasons, &ReferenceError{Field: ref.Field, ParentRef: ref.ParentRef})
		}
		items = append(items, s.referencePut(entity, ref))
		reasons = append(reasons, nil)
	}
	for _, parentRef := range current.References {
		if newRefs[parentRef] {
			continue
		}
		items = append(items, s.referenceDelete(parentRef, entity.EntityRef()))
		reasons = append(reasons, nil)
	}
	for _, c := range current.counted {
		if !newRefs[c.ParentRef] {
			items = append(items, s.uncount(c))
			reasons = append(reasons, nil)
		}
	}

	// Unique constraints: claim new values, release old ones.
	var uniquePKs []string
	if uf, ok := entity.(UniqueFielder); ok {
		fields := uf.UniqueFields()
		oldPKs := toSet(current.UniquePKs)
		for _, field := range sortedKeys(fields) {
			pk := shard.UniqueKey(entity.TableName(), entity.EntityType(), field, fields[field])
			uniquePKs = append(uniquePKs, pk)
			if oldPKs[pk] {
				continue
			}
			items = append(items, s.uniquePut(entity, pk, field, fields[field], now))
			reasons = append(reasons, &UniqueError{Field: field})
		}
		newPKs := toSet(uniquePKs)
		for _, pk := range current.UniquePKs {
			if !newPKs[pk] {
				items = append(items, s.uniqueDelete(pk))
				reasons = append(reasons, nil)
			}
		}
	}

	if len(items) == 0 {
		return s.updateSimple(ctx, entity, item, expectedVersion)
	}

	names, values := updateExprBase(expectedVersion)
	clauses := buildSetClauses(item, names, values)
	clauses = append(clauses, "#updated_at = :updated_at", "#version = #version + :one")

	names["#refs"] = "_refs"
	values[":refs"] = stringList(parentRefs(refs))
	clauses = append(clauses, "#refs = :refs")
	if len(counted) > 0 || len(current.counted) > 0 {
		names["#counted"] = countedAttr
		values[":counted"] = countersValue(counted)
		clauses = append(clauses, "#counted = :counted")
	}
	if len(uniquePKs) > 0 {
		names["#unique_pks"] = "_unique_pks"
		values[":unique_pks"] = stringList(uniquePKs)
		clauses = append(clauses, "#unique_pks = :unique_pks")
	}

	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(entity.TableName()),
			Key:                       entity.GetKey(),
			UpdateExpression:          aws.String("SET " + strings.Join(clauses, ", ")),
			ConditionExpression:       aws.String(versionCondition()),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})
	reasons = append(reasons, ErrConcurrentModification)

	if len(items) > maxTransactItems {
		return fmt.Errorf("update %s: %d actions: %w", entity.EntityRef(), len(items), ErrTooManyItems)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, reasons)
}

// DeleteOptions configures delete behavior.
type DeleteOptions struct {
	// OrphanProtect fails the delete if active children exist. It is implied for
	// entity types the registry marks as Restrict.
	OrphanProtect bool
}

// Delete soft-deletes an entity by setting its TTL, and removes its outgoing
// reference rows and unique constraint rows in the same transaction.
// Children of the entity are never touched.
//
// A protected delete first queries for live children, then conditions the
// write on the entity's child count being zero. Children written through a
// Restrict relationship are counted, so one created between the query and the
// write still fails the delete with ErrHasChildren.
func (s *Store) Delete(ctx context.Context, entity Entity, opts DeleteOptions) error {
	current, err := s.Get(ctx, entity.TableName(), entity.GetKey())
	if err != nil {
		return err
	}

	protect := opts.OrphanProtect || (s.registry != nil && s.registry.Restricts(entity.EntityType()))
	if protect {
		hasChildren, err := s.HasActiveChildren(ctx, entity.EntityRef())
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrHasChildren
		}
	}

	names, values := updateExprBase(current.Version)
	delete(names, "#updated_at")
	delete(values, ":updated_at")
	values[":now"] = unixValue(time.Now())

	condition := versionCondition()
	if protect {
		// Children created after the check above are still counted.
		condition += " AND " + noChildrenCondition
		names["#child_count"] = childCountAttr
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}

	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                           aws.String(entity.TableName()),
			Key:                                 entity.GetKey(),
			UpdateExpression:                    aws.String("SET #ttl = :now, #version = #version + :one"),
			ConditionExpression:                 aws.String(condition),
			ExpressionAttributeNames:            names,
			ExpressionAttributeValues:           values,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}}
	reasons := []error{ErrConcurrentModification}

	for _, parentRef := range current.References {
		items = append(items, s.referenceDelete(parentRef, entity.EntityRef()))
		reasons = append(reasons, nil)
	}
	for _, pk := range current.UniquePKs {
		items = append(items, s.uniqueDelete(pk))
		reasons = append(reasons, nil)
	}
	for _, c := range current.counted {
		items = append(items, s.uncount(c))
		reasons = append(reasons, nil)
	}

	if len(items) > maxTransactItems {
		return fmt.Errorf("delete %s: %d actions: %w", entity.EntityRef(), len(items), ErrTooManyItems)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if protect && blockedByChildren(err, 0) {
		return ErrHasChildren
	}
	return mapTransactionError(err, reasons)
}

// LookupUnique returns the entity ref that owns a unique value in table, or
// ErrNotFound when the value is free.
func (s *Store) LookupUnique(ctx context.Context, table, entityType, field, value string) (string, error) {
	pk := shard.UniqueKey(table, entityType, field, value)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.UniqueTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: constraintSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return "", ErrNotFound
	}
	ref, ok := result.Item["entity_ref"].(*types.AttributeValueMemberS)
	if !ok || ref.Value == "" {
		return "", ErrNotFound
	}
	return ref.Value, nil
}

// HasActiveChildren checks if an entity has any active (non-deleted) children.
func (s *Store) HasActiveChildren(ctx context.Context, parentRef string) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, shardPK := range shard.AllShardPKs(parentRef, s.config.NumShards) {
		g.Go(func() error {
			paginator := dynamodb.NewQueryPaginator(s.client, s.childQuery(shardPK))
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(gctx)
				if err != nil {
					return fmt.Errorf("shard %s: %w", shardPK, err)
				}
				if len(page.Items) > 0 {
					return errChildFound
				}
			}
			return nil
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errChildFound):
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}

// QueryActiveChildren returns all active children of an entity, ordered by child ref.
func (s *Store) QueryActiveChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	var mu sync.Mutex
	var children []ChildRef

	g, gctx := errgroup.WithContext(ctx)
	for _, shardPK := range shard.AllShardPKs(parentRef, s.config.NumShards) {
		g.Go(func() error {
			var shardChildren []ChildRef
			paginator := dynamodb.NewQueryPaginator(s.client, s.childQuery(shardPK))
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(gctx)
				if err != nil {
					return fmt.Errorf("shard %s: %w", shardPK, err)
				}
				for _, item := range page.Items {
					shardChildren = append(shardChildren, s.unmarshalChildRef(item, shardPK))
				}
			}
			mu.Lock()
			children = append(children, shardChildren...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Ref < children[j].Ref })
	return children, nil
}

func (s *Store) childQuery(shardPK string) *dynamodb.QueryInput {
	live := LiveAt(time.Now())
	return &dynamodb.QueryInput{
		TableName:                aws.String(s.config.RelationshipTable),
		KeyConditionExpression:   aws.String("pk = :pk"),
		FilterExpression:         aws.String(live.Filter()),
		ExpressionAttributeNames: live.Names(nil),
		ExpressionAttributeValues: live.Values(map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: shardPK},
		}),
		ConsistentRead: aws.Bool(true),
	}
}

func (s *Store) referenceCheck(check *ConditionCheck, now time.Time) types.TransactWriteItem {
	condExpr := check.ConditionExpr
	if condExpr == "" {
		condExpr = ReferenceExistsCondition()
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(check.TableName),
			Key:                       check.Key,
			ConditionExpression:       aws.String(condExpr),
			ExpressionAttributeNames:  LiveAt(now).Names(nil),
			ExpressionAttributeValues: LiveAt(now).Values(nil),
		},
	}
}

func (s *Store) referencePut(entity Entity, ref Reference) types.TransactWriteItem {
	childRef := entity.EntityRef()
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.RelationshipTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: s.referencePK(ref.ParentRef, childRef)},
				"child_ref":   &types.AttributeValueMemberS{Value: childRef},
				"parent_ref":  &types.AttributeValueMemberS{Value: ref.ParentRef},
				"field":       &types.AttributeValueMemberS{Value: ref.Field},
				"child_table": &types.AttributeValueMemberS{Value: entity.TableName()},
				"child_key":   &types.AttributeValueMemberM{Value: entity.GetKey()},
			},
		},
	}
}

func (s *Store) referenceDelete(parentRef, childRef string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.config.RelationshipTable),
			Key: map[string]types.AttributeValue{
				"pk":        &types.AttributeValueMemberS{Value: s.referencePK(parentRef, childRef)},
				"child_ref": &types.AttributeValueMemberS{Value: childRef},
			},
		},
	}
}

func (s *Store) uniquePut(entity Entity, pk, field, value string, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: pk},
				"sk":          &types.AttributeValueMemberS{Value: constraintSK},
				"entity_type": &types.AttributeValueMemberS{Value: entity.EntityType()},
				"field_name":  &types.AttributeValueMemberS{Value: field},
				"field_value": &types.AttributeValueMemberS{Value: value},
				"entity_ref":  &types.AttributeValueMemberS{Value: entity.EntityRef()},
			},
			// Fails if another live entity already holds this value
			ConditionExpression:       aws.String(uniqueFreeCondition),
			ExpressionAttributeNames:  LiveAt(now).Names(nil),
			ExpressionAttributeValues: LiveAt(now).Values(nil),
		},
	}
}

func (s *Store) uniqueDelete(pk string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.config.UniqueTable),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
				"sk": &types.AttributeValueMemberS{Value: constraintSK},
			},
		},
	}
}

// mapTransactionError maps a cancelled transaction to the reason registered for
// the first item whose condition failed. A transaction cancelled only because
// another transaction touched the same items is ErrConcurrentModification; the
// caller may re-read and retry.
func mapTransactionError(err error, reasons []error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		conflict := false
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i < len(reasons) && reasons[i] != nil {
					return reasons[i]
				}
				return ErrConcurrentModification
			case "TransactionConflict":
				conflict = true
			}
		}
		if conflict {
			return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
		}
	}

	var conflictErr *types.TransactionConflictException
	if errors.As(err, &conflictErr) {
		return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
	}

	return err
}

// managedFields are maintained by the store and never overwritten from caller items.
var managedFields = map[string]bool{
	"id":           true,
	"entity_ref":   true,
	"version":      true,
	"created_at":   true,
	"updated_at":   true,
	ttlAttr:        true,
	"_refs":        true,
	"_unique_pks":  true,
	countedAttr:    true,
	childCountAttr: true,
}

// buildSetClauses turns caller attributes into SET clauses, in attribute name order.
func buildSetClauses(item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) []string {
	keys := make([]string, 0, len(item))
	for k := range item {
		if !managedFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys)+4)
	for i, k := range keys {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		names[nameKey] = k
		values[valueKey] = item[k]
		clauses = append(clauses, nameKey+" = "+valueKey)
	}
	return clauses
}

func updateExprBase(expectedVersion int64) (map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{
		"#updated_at": "updated_at",
		"#version":    "version",
		"#ttl":        ttlAttr,
	}
	values := map[string]types.AttributeValue{
		":updated_at":       &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}
	return names, values
}

func versionCondition() string {
	return "#version = :expected_version AND attribute_not_exists(#ttl)"
}

// collectReferences returns the entity's references with duplicate parents collapsed.
func collectReferences(entity Entity) []Reference {
	r, ok := entity.(Referencer)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var refs []Reference
	for _, ref := range r.References() {
		if ref.ParentRef == "" || seen[ref.ParentRef] {
			continue
		}
		seen[ref.ParentRef] = true
		refs = append(refs, ref)
	}
	return refs
}

func parentRefs(refs []Reference) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.ParentRef)
	}
	return out
}

func stringList(values []string) types.AttributeValue {
	list, _ := attributevalue.MarshalList(values)
	if list == nil {
		list = []types.AttributeValue{}
	}
	return &types.AttributeValueMemberL{Value: list}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func (s *Store) unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["_refs"].(*types.AttributeValueMemberL); ok {
		_ = attributevalue.UnmarshalList(v.Value, &item.References)
	}
	if v, ok := raw["_unique_pks"].(*types.AttributeValueMemberL); ok {
		_ = attributevalue.UnmarshalList(v.Value, &item.UniquePKs)
	}
	item.counted = parseCounters(raw[countedAttr])

	return item
}

// unmarshalChildRef converts a reference item to a ChildRef.
func (s *Store) unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}

	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["field"].(*types.AttributeValueMemberS); ok {
		ref.Field = v.Value
	}
	if v, ok := item["child_table"].(*types.AttributeValueMemberS); ok {
		ref.TableName = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}

	return ref
}
