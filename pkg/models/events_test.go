package models

import (
	"encoding/json"
	"testing"
)

func TestValidEventName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"signup", true},
		{"lesson.completed", true},
		{"plan_upgraded.v2", true},
		{"", false},
		{"Lesson.Completed", false},
		{"lesson..completed", false},
		{"lesson.*", false},
		{"lesson completed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidEventName(tt.name); got != tt.expected {
				t.Errorf("ValidEventName(%q): expected %v, got %v", tt.name, tt.expected, got)
			}
		})
	}
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey("lesson.completed"); got != "track.lesson.completed" {
		t.Errorf("expected track.lesson.completed, got %s", got)
	}
}

func TestTrackRequestJSON(t *testing.T) {
	input := `{"event":"signup","user":{"id":7,"firstname":"Max","lastname":"Power","type":"manager"},"properties":{"plan":"pro"}}`
	var req TrackRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("failed to unmarshal TrackRequest: %v", err)
	}
	if req.User.ID != 7 {
		t.Errorf("User.ID: expected 7, got %d", req.User.ID)
	}
	if req.User.Type != UserTypeManager {
		t.Errorf("User.Type: expected %q, got %q", UserTypeManager, req.User.Type)
	}
	if req.Properties["plan"] != "pro" {
		t.Errorf("Properties[plan]: expected pro, got %v", req.Properties["plan"])
	}
}
