package config

import (
	"os"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Orchestrator.MaxTools != 3 {
		t.Errorf("MaxTools = %d, want 3", cfg.Orchestrator.MaxTools)
	}
	if cfg.Orchestrator.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Orchestrator.TopK)
	}
	if cfg.Orchestrator.FilterLimit != 20 {
		t.Errorf("FilterLimit = %d, want 20", cfg.Orchestrator.FilterLimit)
	}
	if cfg.Orchestrator.ContextBudgetChars != 8000 {
		t.Errorf("ContextBudgetChars = %d, want 8000", cfg.Orchestrator.ContextBudgetChars)
	}
	if cfg.Orchestrator.SessionBudgetSec != 15 {
		t.Errorf("SessionBudgetSec = %d, want 15", cfg.Orchestrator.SessionBudgetSec)
	}
	if cfg.Embedding.TimeoutSec != 3 {
		t.Errorf("Embedding.TimeoutSec = %d, want 3", cfg.Embedding.TimeoutSec)
	}
	if cfg.Embedding.HNSWM != 16 || cfg.Embedding.HNSWEFConstruct != 200 {
		t.Errorf("HNSW defaults = M %d, EF_CONSTRUCTION %d", cfg.Embedding.HNSWM, cfg.Embedding.HNSWEFConstruct)
	}
	if cfg.Generation.TimeoutSec != 10 {
		t.Errorf("Generation.TimeoutSec = %d, want 10", cfg.Generation.TimeoutSec)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		HTTP:       HTTPConfig{Port: 8080},
		Database:   DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding:  EmbeddingConfig{Model: "text-embedding-3-small"},
		Generation: GenerationConfig{Model: "gpt-4o-mini"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"no addrs", func(c *Config) { c.Database.Addrs = nil }},
		{"no embedding model", func(c *Config) { c.Embedding.Model = "" }},
		{"no generation model", func(c *Config) { c.Generation.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("HYDROLENS_TEST_KEY", "secret")
	defer os.Unsetenv("HYDROLENS_TEST_KEY")

	out := expandEnvVars([]byte("api_key: ${HYDROLENS_TEST_KEY}"))
	if string(out) != "api_key: secret" {
		t.Errorf("expanded = %q", out)
	}

	out = expandEnvVars([]byte("port: ${HYDROLENS_MISSING:-8080}"))
	if string(out) != "port: 8080" {
		t.Errorf("default expansion = %q", out)
	}
}
