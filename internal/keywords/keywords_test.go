package keywords

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateBatchPayload(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"config_version": "v1",
		"keywords": ["github copilot", "cursor", "claude code"],
		"max_items": 200,
		"published_after_hours": 24
	}`)

	batch, err := ValidateBatchPayload(payload)
	if err != nil {
		t.Fatalf("expected valid batch, got %v", err)
	}
	if len(batch.Keywords) != 3 {
		t.Fatalf("keywords = %v", batch.Keywords)
	}
	if batch.MaxItems != 200 || batch.PublishedAfterHours != 24 {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestValidateBatchPayloadRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"empty keywords", `{"config_version":"v1","keywords":[]}`},
		{"missing version", `{"keywords":["a"]}`},
		{"wrong version", `{"config_version":"v2","keywords":["a"]}`},
		{"unknown property", `{"config_version":"v1","keywords":["a"],"surprise":1}`},
		{"trailing content", `{"config_version":"v1","keywords":["a"]} extra`},
		{"duplicate keyword", `{"config_version":"v1","keywords":["Copilot","copilot"]}`},
		{"blank keyword", `{"config_version":"v1","keywords":["   "]}`},
		{"empty payload", ``},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ValidateBatchPayload(json.RawMessage(tc.payload)); err == nil {
				t.Fatalf("expected rejection for %s", tc.name)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	content := `{"config_version":"v1","keywords":["cursor"]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	batch, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(batch.Keywords) != 1 || batch.Keywords[0] != "cursor" {
		t.Fatalf("unexpected batch %+v", batch)
	}

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "missing.json") {
		t.Fatalf("expected read error naming the file, got %v", err)
	}
}
