package config

import (
	"encoding/json"
	"testing"
)

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema() failed: %v", err)
	}

	var doc struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if doc.Title != "DittoTasks Configuration" {
		t.Errorf("unexpected title %q", doc.Title)
	}
	for _, key := range []string{"logging", "server", "security", "storage", "adapters", "client"} {
		if _, ok := doc.Properties[key]; !ok {
			t.Errorf("schema is missing top-level key %q", key)
		}
	}
}
