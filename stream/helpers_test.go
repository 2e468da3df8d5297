package stream

import (
	"slices"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestImage_Str(t *testing.T) {
	tests := []struct {
		name string
		im   image
		want string
	}{
		{"present", image{"entity_ref": events.NewStringAttribute("author#1")}, "author#1"},
		{"missing", image{"other": events.NewStringAttribute("x")}, ""},
		{"nil", nil, ""},
		{"number", image{"entity_ref": events.NewNumberAttribute("7")}, ""},
		{"unicode", image{"entity_ref": events.NewStringAttribute("genre#日本語")}, "genre#日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.im.str("entity_ref"); got != tt.want {
				t.Errorf("str() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImage_Num(t *testing.T) {
	tests := []struct {
		name string
		im   image
		want int64
	}{
		{"epoch seconds", image{"ttl": events.NewNumberAttribute("1704067200")}, 1704067200},
		{"missing", image{}, 0},
		{"nil", nil, 0},
		{"string", image{"ttl": events.NewStringAttribute("1704067200")}, 0},
		{"fractional", image{"ttl": events.NewNumberAttribute("1.5")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.im.num("ttl"); got != tt.want {
				t.Errorf("num() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImage_Strs(t *testing.T) {
	im := image{
		"_refs": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("author#1"),
			events.NewNumberAttribute("3"),
			events.NewStringAttribute("genre#2"),
		}),
		"scalar": events.NewStringAttribute("author#1"),
	}

	if got := im.strs("_refs"); !slices.Equal(got, []string{"author#1", "genre#2"}) {
		t.Errorf("strs(_refs) = %v", got)
	}
	if got := im.strs("scalar"); got != nil {
		t.Errorf("strs(scalar) = %v, want nil", got)
	}
	if got := im.strs("absent"); got != nil {
		t.Errorf("strs(absent) = %v, want nil", got)
	}
}

func TestIsSoftDelete(t *testing.T) {
	ttl := events.NewNumberAttribute("1704067200")
	rec := func(name string, oldTTL, newTTL bool) *events.DynamoDBEventRecord {
		r := &events.DynamoDBEventRecord{
			EventName: name,
			Change: events.DynamoDBStreamRecord{
				OldImage: map[string]events.DynamoDBAttributeValue{},
				NewImage: map[string]events.DynamoDBAttributeValue{},
			},
		}
		if oldTTL {
			r.Change.OldImage["ttl"] = ttl
		}
		if newTTL {
			r.Change.NewImage["ttl"] = ttl
		}
		return r
	}

	tests := []struct {
		name   string
		record *events.DynamoDBEventRecord
		want   bool
	}{
		{"ttl newly set", rec("MODIFY", false, true), true},
		{"ttl already set", rec("MODIFY", true, true), false},
		{"ttl cleared", rec("MODIFY", true, false), false},
		{"plain update", rec("MODIFY", false, false), false},
		{"insert", rec("INSERT", false, true), false},
		{"expiry removal", rec("REMOVE", true, false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSoftDelete(tt.record); got != tt.want {
				t.Errorf("isSoftDelete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkIsSoftDelete(b *testing.B) {
	record := &events.DynamoDBEventRecord{
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"entity_ref": events.NewStringAttribute("author#0190a6c2-1234-7234-8234-123456789012"),
				"ttl":        events.NewNumberAttribute("1704067200"),
			},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		isSoftDelete(record)
	}
}
