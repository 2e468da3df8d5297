package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- unmarshalItem Tests ---

func TestUnmarshalItem_Full(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: "test-id"},
		"version":    &types.AttributeValueMemberN{Value: "5"},
		"created_at": &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00Z"},
		"updated_at": &types.AttributeValueMemberS{Value: "2024-01-02T00:00:00Z"},
		"entity_ref": &types.AttributeValueMemberS{Value: "book#test-id"},
		"_refs": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "author#a1"},
			&types.AttributeValueMemberS{Value: "genre#g1"},
		}},
		"_unique_pks": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "UNIQUE#abc"},
		}},
	}

	item := s.unmarshalItem(raw)

	if item.Version != 5 {
		t.Errorf("expected Version 5, got %d", item.Version)
	}
	if item.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("expected CreatedAt '2024-01-01T00:00:00Z', got %q", item.CreatedAt)
	}
	if item.UpdatedAt != "2024-01-02T00:00:00Z" {
		t.Errorf("expected UpdatedAt '2024-01-02T00:00:00Z', got %q", item.UpdatedAt)
	}
	if item.EntityRef != "book#test-id" {
		t.Errorf("expected EntityRef 'book#test-id', got %q", item.EntityRef)
	}
	if len(item.References) != 2 || item.References[0] != "author#a1" || item.References[1] != "genre#g1" {
		t.Errorf("unexpected References %v", item.References)
	}
	if len(item.UniquePKs) != 1 || item.UniquePKs[0] != "UNIQUE#abc" {
		t.Errorf("unexpected UniquePKs %v", item.UniquePKs)
	}
	if item.Raw == nil {
		t.Error("expected Raw to be set")
	}
}

func TestUnmarshalItem_Minimal(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "test-id"},
	}

	item := s.unmarshalItem(raw)

	if item.Version != 0 {
		t.Errorf("expected Version 0 for missing version, got %d", item.Version)
	}
	if item.EntityRef != "" {
		t.Errorf("expected empty EntityRef, got %q", item.EntityRef)
	}
	if item.References != nil {
		t.Errorf("expected nil References, got %v", item.References)
	}
	if item.UniquePKs != nil {
		t.Errorf("expected nil UniquePKs, got %v", item.UniquePKs)
	}
}

func TestUnmarshalItem_BadVersion(t *testing.T) {
	tests := []struct {
		name string
		attr types.AttributeValue
	}{
		{"wrong type", &types.AttributeValueMemberS{Value: "not-a-number"}},
		{"unparseable", &types.AttributeValueMemberN{Value: "invalid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Store{}
			item := s.unmarshalItem(map[string]types.AttributeValue{"version": tt.attr})
			if item.Version != 0 {
				t.Errorf("expected Version 0, got %d", item.Version)
			}
		})
	}
}

func TestUnmarshalItem_LargeVersion(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"version": &types.AttributeValueMemberN{Value: "9223372036854775807"},
	}

	item := s.unmarshalItem(raw)

	if item.Version != 9223372036854775807 {
		t.Errorf("expected max int64, got %d", item.Version)
	}
}

func TestUnmarshalItem_PreservesRaw(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "test"},
		"title": &types.AttributeValueMemberS{Value: "The Wise Man's Fear"},
	}

	item := s.unmarshalItem(raw)

	if v, ok := item.Raw["title"].(*types.AttributeValueMemberS); !ok || v.Value != "The Wise Man's Fear" {
		t.Error("expected title to be preserved in Raw")
	}
}

// --- unmarshalChildRef Tests ---

func TestUnmarshalChildRef_Full(t *testing.T) {
	s := &Store{}
	item := map[string]types.AttributeValue{
		"child_ref":   &types.AttributeValueMemberS{Value: "book#b123"},
		"field":       &types.AttributeValueMemberS{Value: "author_id"},
		"child_table": &types.AttributeValueMemberS{Value: "books"},
		"child_key": &types.AttributeValueMemberM{
			Value: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: "b123"},
			},
		},
	}
	shardPK := "author#a1#00"

	ref := s.unmarshalChildRef(item, shardPK)

	if ref.Ref != "book#b123" {
		t.Errorf("expected Ref 'book#b123', got %q", ref.Ref)
	}
	if ref.Field != "author_id" {
		t.Errorf("expected Field 'author_id', got %q", ref.Field)
	}
	if ref.TableName != "books" {
		t.Errorf("expected TableName 'books', got %q", ref.TableName)
	}
	if ref.ShardPK != shardPK {
		t.Errorf("expected ShardPK %q, got %q", shardPK, ref.ShardPK)
	}
	if v, ok := ref.Key["id"].(*types.AttributeValueMemberS); !ok || v.Value != "b123" {
		t.Error("expected Key[id] to be 'b123'")
	}
}

func TestUnmarshalChildRef_Minimal(t *testing.T) {
	s := &Store{}

	ref := s.unmarshalChildRef(map[string]types.AttributeValue{}, "author#a1#00")

	if ref.Ref != "" || ref.TableName != "" || ref.Field != "" {
		t.Errorf("expected empty ref, got %+v", ref)
	}
	if ref.Key != nil {
		t.Error("expected nil Key")
	}
}

func TestUnmarshalChildRef_WrongKeyType(t *testing.T) {
	s := &Store{}
	item := map[string]types.AttributeValue{
		"child_ref": &types.AttributeValueMemberS{Value: "book#b123"},
		"child_key": &types.AttributeValueMemberS{Value: "not-a-map"},
	}

	ref := s.unmarshalChildRef(item, "author#a1#00")

	if ref.Key != nil {
		t.Error("expected nil Key for wrong type")
	}
}

// --- mapTransactionError Tests ---

func cancelled(codes ...string) *types.TransactionCanceledException {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		if code != "" {
			reasons[i].Code = &codes[i]
		}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestMapTransactionError_NilError(t *testing.T) {
	if err := mapTransactionError(nil, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapTransactionError_NonTransactionError(t *testing.T) {
	originalErr := errors.New("some other error")
	if err := mapTransactionError(originalErr, []error{ErrAlreadyExists}); err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestMapTransactionError_ReferenceCheckFailure(t *testing.T) {
	refErr := &ReferenceError{Field: "author_id", ParentRef: "author#a1"}
	reasons := []error{refErr, ErrAlreadyExists}

	err := mapTransactionError(cancelled("ConditionalCheckFailed", ""), reasons)

	if !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("expected ErrReferenceNotFound, got %v", err)
	}
	var got *ReferenceError
	if !errors.As(err, &got) || got.Field != "author_id" {
		t.Errorf("expected ReferenceError for author_id, got %v", err)
	}
}

func TestMapTransactionError_SecondReferenceFailure(t *testing.T) {
	reasons := []error{
		&ReferenceError{Field: "genre_ids", ParentRef: "genre#g1"},
		&ReferenceError{Field: "genre_ids", ParentRef: "genre#g2"},
		ErrAlreadyExists,
	}

	err := mapTransactionError(cancelled("None", "ConditionalCheckFailed", "None"), reasons)

	var got *ReferenceError
	if !errors.As(err, &got) || got.ParentRef != "genre#g2" {
		t.Errorf("expected ReferenceError for genre#g2, got %v", err)
	}
}

func TestMapTransactionError_EntityPutFailure(t *testing.T) {
	reasons := []error{&ReferenceError{Field: "book_id"}, ErrAlreadyExists}

	err := mapTransactionError(cancelled("", "ConditionalCheckFailed"), reasons)

	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMapTransactionError_UniqueFailure(t *testing.T) {
	reasons := []error{&UniqueError{Field: "name_key"}, ErrAlreadyExists}

	err := mapTransactionError(cancelled("ConditionalCheckFailed", ""), reasons)

	if !errors.Is(err, ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestMapTransactionError_UnmappedIndex(t *testing.T) {
	reasons := []error{ErrConcurrentModification, nil}

	err := mapTransactionError(cancelled("", "ConditionalCheckFailed"), reasons)

	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestMapTransactionError_TransactionConflict(t *testing.T) {
	txErr := cancelled("None", "TransactionConflict")

	err := mapTransactionError(txErr, []error{&UniqueError{Field: "name_key"}, ErrAlreadyExists})

	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
	if errors.Is(err, ErrDuplicateValue) {
		t.Errorf("conflict must not read as a duplicate, got %v", err)
	}
}

func TestMapTransactionError_ConditionFailureWinsOverConflict(t *testing.T) {
	reasons := []error{&UniqueError{Field: "name_key"}, ErrAlreadyExists}

	err := mapTransactionError(cancelled("ConditionalCheckFailed", "TransactionConflict"), reasons)

	if !errors.Is(err, ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestMapTransactionError_ConflictException(t *testing.T) {
	err := mapTransactionError(&types.TransactionConflictException{}, nil)

	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestMapTransactionError_OtherCancellationCode(t *testing.T) {
	txErr := cancelled("ThrottlingError")

	err := mapTransactionError(txErr, []error{ErrAlreadyExists})

	if err != txErr {
		t.Errorf("expected original transaction error, got %v", err)
	}
}

// --- buildSetClauses Tests ---

func TestBuildSetClauses_SkipsManagedFields(t *testing.T) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	item := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: "b1"},
		"version":    &types.AttributeValueMemberN{Value: "3"},
		"entity_ref": &types.AttributeValueMemberS{Value: "book#b1"},
		"title":      &types.AttributeValueMemberS{Value: "Apes and Angels"},
		"isbn":       &types.AttributeValueMemberS{Value: "9780765379528"},
	}

	clauses := buildSetClauses(item, names, values)

	if got := strings.Join(clauses, ", "); got != "#attr0 = :val0, #attr1 = :val1" {
		t.Errorf("unexpected clauses %q", got)
	}
	if names["#attr0"] != "isbn" || names["#attr1"] != "title" {
		t.Errorf("expected attributes in name order, got %v", names)
	}
	if len(values) != 2 {
		t.Errorf("expected 2 values, got %d", len(values))
	}
}

// --- collectReferences Tests ---

type testEntity struct {
	id string
}

func (e *testEntity) TableName() string  { return "books" }
func (e *testEntity) EntityRef() string  { return "book#" + e.id }
func (e *testEntity) EntityType() string { return "book" }
func (e *testEntity) GetKey() PK {
	return PK{"id": &types.AttributeValueMemberS{Value: e.id}}
}

type refEntity struct {
	testEntity
	refs []Reference
}

func (e *refEntity) References() []Reference { return e.refs }

func TestCollectReferences_CollapsesDuplicates(t *testing.T) {
	e := &refEntity{refs: []Reference{
		{Field: "genre_ids", ParentRef: "genre#g1"},
		{Field: "genre_ids", ParentRef: "genre#g1"},
		{Field: "author_id", ParentRef: "author#a1"},
		{Field: "genre_ids", ParentRef: ""},
	}}

	refs := collectReferences(e)

	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].ParentRef != "genre#g1" || refs[1].ParentRef != "author#a1" {
		t.Errorf("expected first-seen order, got %v", parentRefs(refs))
	}
}

func TestCollectReferences_NotReferencer(t *testing.T) {
	if refs := collectReferences(&testEntity{}); refs != nil {
		t.Errorf("expected nil, got %v", refs)
	}
}

// --- Config Tests ---

func TestConfigNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero value", Config{}, Config{RelationshipTable: "shelf_references", UniqueTable: "shelf_unique_constraints", NumShards: 1}},
		{"negative shards", Config{NumShards: -10}, Config{RelationshipTable: "shelf_references", UniqueTable: "shelf_unique_constraints", NumShards: 1}},
		{"in range", Config{NumShards: 16}, Config{RelationshipTable: "shelf_references", UniqueTable: "shelf_unique_constraints", NumShards: 16}},
		{"upper bound", Config{NumShards: 256}, Config{RelationshipTable: "shelf_references", UniqueTable: "shelf_unique_constraints", NumShards: 256}},
		{"clamped", Config{NumShards: 500}, Config{RelationshipTable: "shelf_references", UniqueTable: "shelf_unique_constraints", NumShards: 256}},
		{"custom names", Config{RelationshipTable: "refs", UniqueTable: "uniq", NumShards: 2}, Config{RelationshipTable: "refs", UniqueTable: "uniq", NumShards: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.normalized(); got != tt.want {
				t.Errorf("normalized() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew_NormalizesConfig(t *testing.T) {
	s := New(nil, Config{NumShards: 1000})
	if s.config.NumShards != MaxShards {
		t.Errorf("expected NumShards %d, got %d", MaxShards, s.config.NumShards)
	}
}

// --- Store referencePK Tests ---

func TestStore_ReferencePK(t *testing.T) {
	s := &Store{config: Config{NumShards: 16}}

	pk := s.referencePK("author#a1", "book#b1")

	if !strings.HasPrefix(pk, "author#a1#") {
		t.Errorf("expected pk to start with 'author#a1#', got %q", pk)
	}
}

func TestStore_ReferencePK_SingleShard(t *testing.T) {
	s := &Store{config: Config{NumShards: 1}}

	if pk := s.referencePK("author#a1", "book#b1"); pk != "author#a1#00" {
		t.Errorf("expected 'author#a1#00', got %q", pk)
	}
}
