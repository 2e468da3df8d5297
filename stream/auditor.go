// Package stream provides DynamoDB Streams handlers for the catalog tables.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/shelf/store"
)

// ChildQuerier lists the live children of an entity. *store.Store satisfies it.
type ChildQuerier interface {
	QueryActiveChildren(ctx context.Context, parentRef string) ([]store.ChildRef, error)
	Registry() *store.Registry
}

// Violation is a deleted parent that still has children under a Restrict
// relationship. It happens when a child is created between the delete's
// dependent check and the delete itself.
type Violation struct {
	ParentRef string   `json:"parent_ref"`
	Children  []string `json:"children"`
}

// AuditResult summarizes one stream batch.
type AuditResult struct {
	Records    int         `json:"records"`
	Deletes    int         `json:"deletes"`
	Orphans    int         `json:"orphans"`
	Violations []Violation `json:"violations,omitempty"`
}

// Auditor checks soft deletes against the relationship registry after the fact.
// It never modifies data.
type Auditor struct {
	store  ChildQuerier
	logger *slog.Logger
}

// NewAuditor creates an Auditor. A nil logger means slog.Default().
func NewAuditor(s ChildQuerier, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		store:  s,
		logger: logger,
	}
}

// Handle audits every delete in event. It is designed to be used as an AWS
// Lambda handler; a returned error makes the batch retry.
func (a *Auditor) Handle(ctx context.Context, event events.DynamoDBEvent) (AuditResult, error) {
	var result AuditResult
	for _, record := range event.Records {
		result.Records++
		if err := a.processRecord(ctx, &record, &result); err != nil {
			a.logger.Error("failed to audit record",
				"event_id", record.EventID,
				"error", err,
			)
			return result, err
		}
	}
	return result, nil
}

// processRecord audits a single stream record.
func (a *Auditor) processRecord(ctx context.Context, record *events.DynamoDBEventRecord, result *AuditResult) error {
	if !isSoftDelete(record) {
		return nil
	}

	newImage := image(record.Change.NewImage)
	entityRef := newImage.str("entity_ref")
	entityType, _, ok := strings.Cut(entityRef, "#")
	if !ok {
		a.logger.Warn("delete without entity ref", "event_id", record.EventID)
		return nil
	}
	result.Deletes++

	registry := a.store.Registry()
	if registry == nil || !registry.HasChildren(entityType) {
		return nil
	}

	children, err := a.store.QueryActiveChildren(ctx, entityRef)
	if err != nil {
		return fmt.Errorf("query children of %s: %w", entityRef, err)
	}

	var restricted, orphans []string
	for _, child := range children {
		childType, _, _ := strings.Cut(child.Ref, "#")
		rel, ok := registry.Lookup(entityType, childType)
		if ok && rel.OnDelete == store.Ignore {
			orphans = append(orphans, child.Ref)
			continue
		}
		restricted = append(restricted, child.Ref)
	}

	if len(orphans) > 0 {
		result.Orphans += len(orphans)
		a.logger.Info("deleted entity left children in place",
			"entity_ref", entityRef,
			"children", orphans,
		)
	}
	if len(restricted) > 0 {
		result.Violations = append(result.Violations, Violation{ParentRef: entityRef, Children: restricted})
		a.logger.Error("deleted entity still has dependents",
			"entity_ref", entityRef,
			"dependents", restricted,
			"refs", newImage.strs("_refs"),
		)
	}
	return nil
}

// isSoftDelete reports whether record is the MODIFY that first set a TTL.
func isSoftDelete(record *events.DynamoDBEventRecord) bool {
	if record.EventName != "MODIFY" {
		return false
	}
	return image(record.Change.OldImage).num("ttl") == 0 &&
		image(record.Change.NewImage).num("ttl") != 0
}

// image is a stream record image. Lookups of a missing or mistyped attribute
// return the zero value.
type image map[string]events.DynamoDBAttributeValue

func (im image) str(key string) string {
	if v, ok := im[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func (im image) num(key string) int64 {
	v, ok := im[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0
	}
	n, err := strconv.ParseInt(v.Number(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// strs returns the string members of a list attribute, skipping other types.
func (im image) strs(key string) []string {
	v, ok := im[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var out []string
	for _, item := range v.List() {
		if item.DataType() == events.DataTypeString {
			out = append(out, item.String())
		}
	}
	return out
}
