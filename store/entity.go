package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK is a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Entity is anything the store can write. EntityRef is "<type>#<id>" and must
// be stable for the life of the entity; reference and claim rows point at it.
type Entity interface {
	TableName() string
	GetKey() PK
	EntityRef() string
	EntityType() string
}

// Referencer is implemented by entities that point at other entities.
// A book references one author and any number of genres; a book instance
// references one book.
type Referencer interface {
	// References returns every outgoing reference. Duplicates (same ParentRef)
	// are collapsed by the store.
	References() []Reference
}

// Reference is one outgoing edge from an entity to the entity it depends on.
type Reference struct {
	// Field is the attribute that holds the reference (e.g., "author_id").
	// It is reported back in ReferenceError when the target does not exist.
	Field string

	// ParentRef is the referenced entity's reference (e.g., "author#uuid").
	ParentRef string

	// Check validates that the referenced entity exists at write time.
	// Nil skips validation.
	Check *ConditionCheck
}

// ConditionCheck defines a referenced-entity existence check for transactions.
type ConditionCheck struct {
	TableName string
	Key       PK

	// ConditionExpr is an optional custom condition expression.
	// If empty, ReferenceExistsCondition() is used (checks existence and not deleted).
	ConditionExpr string
}

// UniqueFielder is implemented by entities with unique field constraints.
type UniqueFielder interface {
	// UniqueFields returns field name to value mappings for fields that must be
	// unique within the entity's table. Values must already be normalized; the
	// store compares them byte for byte.
	UniqueFields() map[string]string
}

// Item is an entity row as read back, with the store-managed attributes
// decoded. Raw still holds every attribute for the caller to unmarshal.
type Item struct {
	Raw        map[string]types.AttributeValue
	Version    int64
	CreatedAt  string // RFC 3339
	UpdatedAt  string // RFC 3339
	EntityRef  string
	References []string // parent refs recorded at the last write
	UniquePKs  []string // claim rows owned by the entity

	counted []counter
}

// ChildRef is one reference row, read from the parent's side.
type ChildRef struct {
	Ref       string
	Field     string
	TableName string
	Key       PK
	ShardPK   string
}

// ScanInput lists a whole table. FilterExpression, if set, is combined with
// the liveness filter; its placeholders must not use #ttl or :now.
type ScanInput struct {
	TableName                 string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
}
