package github

import (
	"testing"

	"github.com/helmgrove/integration-oauth/providers"
)

func TestNew(t *testing.T) {
	cfg, err := New(&Config{
		ClientID:     "github-client",
		ClientSecret: providers.SecretSource{Env: "GITHUB_CLIENT_SECRET"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.ID != "github" {
		t.Errorf("ID = %q, want github", cfg.ID)
	}
	if len(cfg.Scopes) != 2 {
		t.Errorf("default Scopes = %v, want [read:user user:email]", cfg.Scopes)
	}
	if cfg.UseBasicAuth {
		t.Error("UseBasicAuth should be false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNew_RequiresClientID(t *testing.T) {
	if _, err := New(&Config{ClientSecret: providers.SecretSource{Value: "s"}}); err == nil {
		t.Error("New() without client ID should fail")
	}
}
