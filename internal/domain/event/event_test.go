package event

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		wantErr bool
	}{
		{"created with instance", Event{Kind: Created, ObjectType: "article", Instance: map[string]any{"id": "1"}}, false},
		{"updated by key", Event{Kind: Updated, ObjectType: "article", PrimaryKey: "1"}, false},
		{"deleted", Event{Kind: Deleted, ObjectType: "article", PrimaryKey: "1"}, false},
		{"bad kind", Event{Kind: "moved", ObjectType: "article", PrimaryKey: "1"}, true},
		{"no type", Event{Kind: Created, PrimaryKey: "1"}, true},
		{"delete without key", Event{Kind: Deleted, ObjectType: "article", Instance: map[string]any{"id": "1"}}, true},
		{"update without key or instance", Event{Kind: Updated, ObjectType: "article"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithoutInstance(t *testing.T) {
	ev := Event{Kind: Created, ObjectType: "article", PrimaryKey: "1", Instance: map[string]any{"id": "1"}}
	stripped := ev.WithoutInstance()
	if stripped.Instance != nil {
		t.Error("instance kept")
	}
	if ev.Instance == nil {
		t.Error("original modified")
	}
}
