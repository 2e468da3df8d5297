package stream_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/shelf/store"
	"github.com/jacentio/shelf/stream"
)

type fakeStore struct {
	registry *store.Registry
	children map[string][]store.ChildRef
	err      error
	queried  []string
}

func (f *fakeStore) QueryActiveChildren(_ context.Context, parentRef string) ([]store.ChildRef, error) {
	f.queried = append(f.queried, parentRef)
	if f.err != nil {
		return nil, f.err
	}
	return f.children[parentRef], nil
}

func (f *fakeStore) Registry() *store.Registry { return f.registry }

func catalogRegistry() *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentType: "author", ChildType: "book", ChildTableName: "books", ReferenceAttr: "author_id", OnDelete: store.Restrict})
	r.Register(store.Relationship{ParentType: "genre", ChildType: "book", ChildTableName: "books", ReferenceAttr: "genre_ids", OnDelete: store.Restrict})
	r.Register(store.Relationship{ParentType: "book", ChildType: "bookinstance", ChildTableName: "book_instances", ReferenceAttr: "book_id", OnDelete: store.Ignore})
	return r
}

func deleteRecord(entityRef string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + entityRef,
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"entity_ref": events.NewStringAttribute(entityRef),
			},
			NewImage: map[string]events.DynamoDBAttributeValue{
				"entity_ref": events.NewStringAttribute(entityRef),
				"ttl":        events.NewNumberAttribute("1704067200"),
			},
		},
	}
}

func newAuditor(fs *fakeStore) (*stream.Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	return stream.NewAuditor(fs, slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestNewAuditor_NilLogger(t *testing.T) {
	if a := stream.NewAuditor(&fakeStore{}, nil); a == nil {
		t.Fatal("expected non-nil Auditor")
	}
}

func TestHandle_RestrictViolation(t *testing.T) {
	fs := &fakeStore{
		registry: catalogRegistry(),
		children: map[string][]store.ChildRef{
			"author#a1": {{Ref: "book#b1"}, {Ref: "book#b2"}},
		},
	}
	a, logs := newAuditor(fs)

	result, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("author#a1")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Deletes != 1 {
		t.Errorf("expected 1 delete, got %d", result.Deletes)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(result.Violations))
	}
	v := result.Violations[0]
	if v.ParentRef != "author#a1" || len(v.Children) != 2 {
		t.Errorf("unexpected violation %+v", v)
	}
	if !strings.Contains(logs.String(), "level=ERROR") {
		t.Errorf("expected an ERROR log, got %q", logs.String())
	}
}

func TestHandle_IgnoredChildrenAreOrphans(t *testing.T) {
	fs := &fakeStore{
		registry: catalogRegistry(),
		children: map[string][]store.ChildRef{
			"book#b1": {{Ref: "bookinstance#i1"}},
		},
	}
	a, logs := newAuditor(fs)

	result, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("book#b1")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Orphans != 1 {
		t.Errorf("expected 1 orphan, got %d", result.Orphans)
	}
	if len(result.Violations) != 0 {
		t.Errorf("expected no violations, got %+v", result.Violations)
	}
	if strings.Contains(logs.String(), "level=ERROR") {
		t.Errorf("expected no ERROR log, got %q", logs.String())
	}
}

func TestHandle_CleanDelete(t *testing.T) {
	fs := &fakeStore{registry: catalogRegistry()}
	a, _ := newAuditor(fs)

	result, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("genre#g1")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deletes != 1 || len(result.Violations) != 0 || result.Orphans != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestHandle_LeafTypeSkipsQuery(t *testing.T) {
	fs := &fakeStore{registry: catalogRegistry()}
	a, _ := newAuditor(fs)

	_, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("bookinstance#i1")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fs.queried) != 0 {
		t.Errorf("expected no child query for a leaf type, got %v", fs.queried)
	}
}

func TestHandle_SkipsNonDeletes(t *testing.T) {
	alreadyDeleted := deleteRecord("author#a1")
	alreadyDeleted.Change.OldImage["ttl"] = events.NewNumberAttribute("1000")

	update := deleteRecord("author#a2")
	delete(update.Change.NewImage, "ttl")

	tests := []struct {
		name   string
		record events.DynamoDBEventRecord
	}{
		{"INSERT", events.DynamoDBEventRecord{EventName: "INSERT"}},
		{"REMOVE", events.DynamoDBEventRecord{EventName: "REMOVE"}},
		{"TTL already set", alreadyDeleted},
		{"plain update", update},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{registry: catalogRegistry()}
			a, _ := newAuditor(fs)

			result, err := a.Handle(context.Background(), events.DynamoDBEvent{
				Records: []events.DynamoDBEventRecord{tt.record},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Records != 1 || result.Deletes != 0 {
				t.Errorf("unexpected result %+v", result)
			}
			if len(fs.queried) != 0 {
				t.Errorf("expected no queries, got %v", fs.queried)
			}
		})
	}
}

func TestHandle_QueryErrorStopsBatch(t *testing.T) {
	fs := &fakeStore{registry: catalogRegistry(), err: errors.New("throttled")}
	a, _ := newAuditor(fs)

	result, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("author#a1"), deleteRecord("author#a2")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Records != 1 {
		t.Errorf("expected processing to stop after the first record, got %d", result.Records)
	}
}

func TestHandle_NilRegistry(t *testing.T) {
	fs := &fakeStore{}
	a, _ := newAuditor(fs)

	result, err := a.Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{deleteRecord("author#a1")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deletes != 1 || len(fs.queried) != 0 {
		t.Errorf("unexpected result %+v, queried %v", result, fs.queried)
	}
}
