package fairthrottle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arrowlane/fairthrottle/core"
)

func TestNewConfig(t *testing.T) {
	config := NewConfig()

	if config.Kind != KindStochastic {
		t.Errorf("Kind = %s, want %s", config.Kind, KindStochastic)
	}
	if config.Buckets != core.DefaultSFTBuckets {
		t.Errorf("Buckets = %d, want %d", config.Buckets, core.DefaultSFTBuckets)
	}
	if config.InitialTps != core.DefaultInitialTps {
		t.Errorf("InitialTps = %v, want %v", config.InitialTps, core.DefaultInitialTps)
	}
	if config.FloorTps != core.DefaultFloorTps {
		t.Errorf("FloorTps = %v, want %v", config.FloorTps, core.DefaultFloorTps)
	}
	if config.KeyExtractor != "ip-proxy" {
		t.Errorf("KeyExtractor = %s, want ip-proxy", config.KeyExtractor)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    ThrottleKind
		wantErr bool
	}{
		{name: "empty kind defaults to stochastic", kind: ""},
		{name: "stochastic", kind: KindStochastic},
		{name: "bloom", kind: KindBloom},
		{name: "unknown kind", kind: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			config.Kind = tt.kind
			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigBuildWithTimeSource(t *testing.T) {
	t.Run("stochastic default", func(t *testing.T) {
		config := NewConfig()
		throttle, err := config.BuildWithTimeSource(core.NewMockTimeSource(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if throttle == nil {
			t.Fatal("expected non-nil throttle")
		}
	})

	t.Run("bloom with overridden bucket capacity", func(t *testing.T) {
		config := NewConfig()
		config.Kind = KindBloom
		config.Buckets = 5
		config.BucketCapacity = 42
		throttle, err := config.BuildWithTimeSource(core.NewMockTimeSource(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if throttle == nil {
			t.Fatal("expected non-nil throttle")
		}
	})

	t.Run("invalid kind rejected before reaching core", func(t *testing.T) {
		config := NewConfig()
		config.Kind = "garbage"
		_, err := config.BuildWithTimeSource(core.NewMockTimeSource(0))
		if err == nil {
			t.Error("expected error for invalid kind")
		}
	})
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
kind: bloom
buckets: 10
initial_tps: 50
floor_tps: 5
ceiling_tps: 500
bucket_capacity: 75
key_extractor: "header:X-API-Key"
`
	validPath := filepath.Join(tmpDir, "valid.yaml")
	if err := os.WriteFile(validPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	config, err := LoadConfigFromFile(validPath)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() unexpected error: %v", err)
	}
	if config.Kind != KindBloom {
		t.Errorf("Kind = %s, want %s", config.Kind, KindBloom)
	}
	if config.Buckets != 10 {
		t.Errorf("Buckets = %d, want 10", config.Buckets)
	}
	if config.KeyExtractor != "header:X-API-Key" {
		t.Errorf("KeyExtractor = %s, want header:X-API-Key", config.KeyExtractor)
	}

	invalidYAML := `
kind: bloom
  buckets weird {[
`
	invalidPath := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalidPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if _, err := LoadConfigFromFile(invalidPath); err == nil {
		t.Error("LoadConfigFromFile() expected error for invalid YAML, got nil")
	}

	invalidConfig := `
kind: not-a-real-kind
`
	invalidConfigPath := filepath.Join(tmpDir, "invalid_config.yaml")
	if err := os.WriteFile(invalidConfigPath, []byte(invalidConfig), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if _, err := LoadConfigFromFile(invalidConfigPath); err == nil {
		t.Error("LoadConfigFromFile() expected error for invalid kind, got nil")
	}

	if _, err := LoadConfigFromFile(filepath.Join(tmpDir, "nonexistent.yaml")); err == nil {
		t.Error("LoadConfigFromFile() expected error for nonexistent file, got nil")
	}
}

func TestLoadConfigFromFileDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	minimalConfig := "kind: stochastic\n"
	minimalPath := filepath.Join(tmpDir, "minimal.yaml")
	if err := os.WriteFile(minimalPath, []byte(minimalConfig), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	config, err := LoadConfigFromFile(minimalPath)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() unexpected error: %v", err)
	}
	if config.Buckets != core.DefaultSFTBuckets {
		t.Errorf("Buckets = %d, want default %d", config.Buckets, core.DefaultSFTBuckets)
	}
	if config.InitialTps != core.DefaultInitialTps {
		t.Errorf("InitialTps = %v, want default %v", config.InitialTps, core.DefaultInitialTps)
	}
}
