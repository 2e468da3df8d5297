package store

// Default table names. A deployment with several catalogs in one account
// prefixes them.
const (
	DefaultRelationshipTable = "shelf_references"
	DefaultUniqueTable       = "shelf_unique_constraints"

	// MaxShards bounds Config.NumShards; shard suffixes are two hex digits.
	MaxShards = 256
)

// Config names the side tables and sets reference sharding. The zero value is
// usable: empty names take the defaults and NumShards is clamped to 1..MaxShards.
type Config struct {
	// RelationshipTable holds one reference row per (parent, child) edge.
	RelationshipTable string

	// UniqueTable holds one row per claimed unique field value.
	UniqueTable string

	// NumShards spreads a parent's reference rows over this many partitions.
	// Listing dependents then costs one query per shard, run in parallel.
	NumShards int
}

// DefaultConfig returns a single-shard configuration with the default table names.
func DefaultConfig() Config {
	return Config{}.normalized()
}

// normalized fills defaults and clamps NumShards.
func (c Config) normalized() Config {
	if c.RelationshipTable == "" {
		c.RelationshipTable = DefaultRelationshipTable
	}
	if c.UniqueTable == "" {
		c.UniqueTable = DefaultUniqueTable
	}
	c.NumShards = min(max(c.NumShards, 1), MaxShards)
	return c
}
