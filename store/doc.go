// Package store keeps entities in DynamoDB and enforces the links between them.
//
// Three kinds of rows are written:
//
//   - entity rows, one table per entity type, keyed by the entity's [PK]
//   - reference rows in [Config.RelationshipTable], one per (parent, child)
//     edge, partitioned by the parent ref so dependents are found by query
//   - claim rows in [Config.UniqueTable], one per unique field value
//
// Every write that touches more than one of them goes through a single
// TransactWriteItems call. An entity that implements [Referencer] gets a
// ConditionCheck per parent on create and update; an entity that implements
// [UniqueFielder] claims its values in the same transaction.
//
// Deletes are soft: the entity row gets a ttl attribute and DynamoDB expires
// it later. Reads apply a [Live] filter, so a row whose ttl has passed is
// treated as absent everywhere. The delete also drops the entity's own
// reference and claim rows, which frees its unique values immediately.
//
// Whether a parent may be deleted depends on the [Registry]. A [Relationship]
// marked [Restrict] blocks the delete while a live child exists; one marked
// [Ignore] leaves the children in place:
//
//	reg := store.NewRegistry()
//	reg.Register(store.Relationship{
//	    ParentType: "author", ChildType: "book",
//	    ChildTableName: "books", ReferenceAttr: "author_id",
//	    OnDelete: store.Restrict,
//	})
//	s := store.NewWithRegistry(client, store.Config{NumShards: 4}, reg)
//
// Children under a Restrict relationship also bump a child_count attribute on
// the parent in their own create transaction, and give it back when deleted or
// repointed. A restricted delete is conditioned on that count being zero, so
// the dependent query and the delete cannot be split by a new child. Rows
// written before counting existed are only caught by the query; stream
// consumers can audit for those.
//
// Sentinel errors are matched with errors.Is. [ReferenceError] and
// [UniqueError] carry the field that failed and match [ErrReferenceNotFound]
// and [ErrDuplicateValue] respectively.
package store
