package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// A parent under a Restrict relationship carries childCountAttr, the number of
// live children pointing at it. Child writes adjust it in their own transaction
// and the parent's delete is conditioned on it being zero, so a child created
// after the dependent check still blocks the delete.
const (
	childCountAttr = "child_count"
	countedAttr    = "_counted"

	noChildrenCondition = "(attribute_not_exists(#child_count) OR #child_count <= :zero)"
)

// counter is a parent row whose child count an entity incremented.
type counter struct {
	ParentRef string
	Table     string
	Key       PK
}

// counts reports whether child's reference adjusts the parent's child count.
func (s *Store) counts(child Entity, ref Reference) bool {
	if s.registry == nil || ref.Check == nil {
		return false
	}
	parentType, _, _ := strings.Cut(ref.ParentRef, "#")
	rel, ok := s.registry.Lookup(parentType, child.EntityType())
	return ok && rel.OnDelete == Restrict
}

// countedReference increments the parent's child count, failing like a
// ConditionCheck when the parent is missing or deleted.
func (s *Store) countedReference(check *ConditionCheck, now time.Time) types.TransactWriteItem {
	condExpr := check.ConditionExpr
	if condExpr == "" {
		condExpr = ReferenceExistsCondition()
	}
	live := LiveAt(now)
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(check.TableName),
			Key:                 check.Key,
			UpdateExpression:    aws.String("ADD #child_count :delta"),
			ConditionExpression: aws.String(condExpr),
			ExpressionAttributeNames: live.Names(map[string]string{
				"#child_count": childCountAttr,
			}),
			ExpressionAttributeValues: live.Values(map[string]types.AttributeValue{
				":delta": &types.AttributeValueMemberN{Value: "1"},
			}),
		},
	}
}

// uncount decrements a parent's child count. The parent row must still exist;
// an update never creates it.
func (s *Store) uncount(c counter) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                aws.String(c.Table),
			Key:                      c.Key,
			UpdateExpression:         aws.String("ADD #child_count :delta"),
			ConditionExpression:      aws.String("attribute_exists(id)"),
			ExpressionAttributeNames: map[string]string{"#child_count": childCountAttr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":delta": &types.AttributeValueMemberN{Value: "-1"},
			},
		},
	}
}

func countersValue(counters []counter) types.AttributeValue {
	list := make([]types.AttributeValue, 0, len(counters))
	for _, c := range counters {
		list = append(list, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"ref":   &types.AttributeValueMemberS{Value: c.ParentRef},
			"table": &types.AttributeValueMemberS{Value: c.Table},
			"key":   &types.AttributeValueMemberM{Value: c.Key},
		}})
	}
	return &types.AttributeValueMemberL{Value: list}
}

func parseCounters(v types.AttributeValue) []counter {
	list, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	var out []counter
	for _, entry := range list.Value {
		m, ok := entry.(*types.AttributeValueMemberM)
		if !ok {
			continue
		}
		var c counter
		if ref, ok := m.Value["ref"].(*types.AttributeValueMemberS); ok {
			c.ParentRef = ref.Value
		}
		if table, ok := m.Value["table"].(*types.AttributeValueMemberS); ok {
			c.Table = table.Value
		}
		if key, ok := m.Value["key"].(*types.AttributeValueMemberM); ok {
			c.Key = key.Value
		}
		if c.ParentRef != "" && c.Table != "" && c.Key != nil {
			out = append(out, c)
		}
	}
	return out
}

// childCount reads childCountAttr from an item; absent means zero.
func childCount(item map[string]types.AttributeValue) int64 {
	n, ok := item[childCountAttr].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(n.Value, 10, 64)
	return v
}

// blockedByChildren reports whether a cancelled transaction failed on the
// entity update at index because the entity still counts children.
func blockedByChildren(err error, index int) bool {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) || index >= len(txErr.CancellationReasons) {
		return false
	}
	reason := txErr.CancellationReasons[index]
	if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
		return false
	}
	return childCount(reason.Item) > 0
}
