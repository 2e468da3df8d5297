// Package shard provides partition key generation for the reference and unique tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// ReferencePK computes the sharded partition key for a reference record.
// With numShards=1, all records for a parent go to shard "00".
// With numShards>1, records are distributed across shards based on childRef hash.
func ReferencePK(parentRef, childRef string, numShards int) string {
	if numShards <= 1 {
		return ShardPK(parentRef, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childRef))
	return ShardPK(parentRef, int(h.Sum32()%uint32(numShards)))
}

// ShardPK returns the partition key of one shard of a parent's reference set.
func ShardPK(parentRef string, shard int) string {
	return fmt.Sprintf("%s#%02x", parentRef, shard)
}

// AllShardPKs lists every partition key a parent's references may live under.
func AllShardPKs(parentRef string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	pks := make([]string, numShards)
	for i := range pks {
		pks[i] = ShardPK(parentRef, i)
	}
	return pks
}

// UniqueKey computes a hash-distributed partition key for a unique constraint.
// scope separates independent namespaces (for root entities it is the entity type's
// collection name). value is expected to be already normalized by the caller.
func UniqueKey(scope, entityType, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s#%s", scope, entityType, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}
