package store

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type countedChild struct{}

func (c countedChild) TableName() string  { return "books" }
func (c countedChild) EntityRef() string  { return "book#b1" }
func (c countedChild) EntityType() string { return "book" }
func (c countedChild) GetKey() PK {
	return PK{"id": &types.AttributeValueMemberS{Value: "b1"}}
}

func TestCounters_RoundTrip(t *testing.T) {
	in := []counter{
		{ParentRef: "author#a1", Table: "authors", Key: PK{"id": &types.AttributeValueMemberS{Value: "a1"}}},
		{ParentRef: "genre#g1", Table: "genres", Key: PK{"id": &types.AttributeValueMemberS{Value: "g1"}}},
	}

	out := parseCounters(countersValue(in))

	if len(out) != 2 {
		t.Fatalf("Expected 2 counters, got %d", len(out))
	}
	for i := range in {
		if out[i].ParentRef != in[i].ParentRef || out[i].Table != in[i].Table {
			t.Errorf("Counter %d: expected %s in %s, got %s in %s", i, in[i].ParentRef, in[i].Table, out[i].ParentRef, out[i].Table)
		}
		id, ok := out[i].Key["id"].(*types.AttributeValueMemberS)
		if !ok || id.Value != in[i].Key["id"].(*types.AttributeValueMemberS).Value {
			t.Errorf("Counter %d: key not preserved: %v", i, out[i].Key)
		}
	}
}

func TestParseCounters_SkipsMalformed(t *testing.T) {
	v := &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberS{Value: "author#a1"},
		&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"ref": &types.AttributeValueMemberS{Value: "author#a1"},
		}},
		&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"ref":   &types.AttributeValueMemberS{Value: "genre#g1"},
			"table": &types.AttributeValueMemberS{Value: "genres"},
			"key":   &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "g1"}}},
		}},
	}}

	out := parseCounters(v)

	if len(out) != 1 || out[0].ParentRef != "genre#g1" {
		t.Errorf("Expected only genre#g1, got %+v", out)
	}
	if got := parseCounters(&types.AttributeValueMemberS{Value: "x"}); got != nil {
		t.Errorf("Expected nil for non-list, got %+v", got)
	}
	if got := parseCounters(nil); got != nil {
		t.Errorf("Expected nil for missing attribute, got %+v", got)
	}
}

func TestStore_Counts(t *testing.T) {
	r := NewRegistry()
	r.Register(Relationship{ParentType: "author", ChildType: "book", ChildTableName: "books", ReferenceAttr: "author_id", OnDelete: Restrict})
	r.Register(Relationship{ParentType: "shelf", ChildType: "book", ChildTableName: "books", ReferenceAttr: "shelf_id", OnDelete: Ignore})
	check := &ConditionCheck{TableName: "authors"}

	tests := []struct {
		name     string
		registry *Registry
		ref      Reference
		expected bool
	}{
		{"restrict", r, Reference{ParentRef: "author#a1", Check: check}, true},
		{"ignore", r, Reference{ParentRef: "shelf#s1", Check: check}, false},
		{"unregistered", r, Reference{ParentRef: "series#s1", Check: check}, false},
		{"no check", r, Reference{ParentRef: "author#a1"}, false},
		{"no registry", nil, Reference{ParentRef: "author#a1", Check: check}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Store{registry: tt.registry}
			if got := s.counts(countedChild{}, tt.ref); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestBlockedByChildren(t *testing.T) {
	failed := "ConditionalCheckFailed"
	none := "None"
	withCount := func(code *string, n string) error {
		item := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "a1"}}
		if n != "" {
			item[childCountAttr] = &types.AttributeValueMemberN{Value: n}
		}
		return &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{{Code: code, Item: item}}}
	}

	tests := []struct {
		name     string
		err      error
		index    int
		expected bool
	}{
		{"counted children", withCount(&failed, "2"), 0, true},
		{"zero count", withCount(&failed, "0"), 0, false},
		{"no count", withCount(&failed, ""), 0, false},
		{"other reason", withCount(&none, "1"), 0, false},
		{"index out of range", withCount(&failed, "1"), 1, false},
		{"wrapped", fmt.Errorf("delete: %w", withCount(&failed, "1")), 0, true},
		{"not a cancellation", fmt.Errorf("boom"), 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := blockedByChildren(tt.err, tt.index); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
