package store

// DeleteRule says what deleting a parent means for its children.
type DeleteRule int

const (
	// Restrict rejects the parent's deletion while active children exist.
	Restrict DeleteRule = iota

	// Ignore lets the parent be deleted and leaves its children in place.
	Ignore
)

func (r DeleteRule) String() string {
	switch r {
	case Restrict:
		return "restrict"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Relationship defines a parent-child relationship.
type Relationship struct {
	// ParentType is the parent entity type (e.g., "author").
	ParentType string

	// ChildType is the child entity type (e.g., "book").
	ChildType string

	// ChildTableName is the DynamoDB table name for the child (e.g., "books").
	ChildTableName string

	// ReferenceAttr is the attribute in the child that references the parent (e.g., "author_id").
	ReferenceAttr string

	// OnDelete controls whether the parent may be deleted while children exist.
	OnDelete DeleteRule
}

// Registry holds all known entity relationships.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
	}
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}

// Restricts reports whether any relationship forbids deleting a parent of this
// type while it has children.
func (r *Registry) Restricts(parentType string) bool {
	for _, rel := range r.byParent[parentType] {
		if rel.OnDelete == Restrict {
			return true
		}
	}
	return false
}

// Lookup returns the relationship between a parent type and a child type.
func (r *Registry) Lookup(parentType, childType string) (Relationship, bool) {
	for _, rel := range r.byParent[parentType] {
		if rel.ChildType == childType {
			return rel, true
		}
	}
	return Relationship{}, false
}
