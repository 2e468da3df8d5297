package store

import (
	"maps"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// A soft delete sets "ttl" to the delete time in Unix seconds and DynamoDB
// removes the item some time later. Until then an item whose ttl is not in the
// future reads as absent everywhere.

const ttlAttr = "ttl"

// uniqueFreeCondition holds when a constraint row is absent or its holder was deleted.
const uniqueFreeCondition = "attribute_not_exists(pk) OR #ttl <= :now"

// Live builds expression parts matching items that are not soft deleted at At.
type Live struct {
	At time.Time
}

// LiveAt returns the liveness filter for t.
func LiveAt(t time.Time) Live { return Live{At: t} }

// Filter is the condition matching live items.
func (l Live) Filter() string {
	return "(attribute_not_exists(#ttl) OR #ttl > :now)"
}

// And joins expr with the liveness filter. An empty expr yields the filter alone.
func (l Live) And(expr string) string {
	if expr == "" {
		return l.Filter()
	}
	return "(" + expr + ") AND " + l.Filter()
}

// Names returns extra plus the attribute names the filter uses.
func (l Live) Names(extra map[string]string) map[string]string {
	out := map[string]string{"#ttl": ttlAttr}
	maps.Copy(out, extra)
	return out
}

// Values returns extra plus the attribute values the filter uses.
func (l Live) Values(extra map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{":now": unixValue(l.At)}
	maps.Copy(out, extra)
	return out
}

// Deleted reports whether item was soft deleted at or before l.At. Items
// without a numeric ttl are live.
func (l Live) Deleted(item map[string]types.AttributeValue) bool {
	n, ok := item[ttlAttr].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= l.At.Unix()
}

// IsDeleted reports whether item is soft deleted now.
func IsDeleted(item map[string]types.AttributeValue) bool {
	return LiveAt(time.Now()).Deleted(item)
}

// ReferenceExistsCondition is the default reference check: the referenced
// entity exists and is live.
func ReferenceExistsCondition() string {
	return Live{}.And("attribute_exists(id)")
}

func unixValue(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}
