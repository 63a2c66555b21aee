package credential

import "testing"

func TestAPIKey_EnvOverridesKeyring(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-env")

	got, err := APIKey()
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if got != "from-env" {
		t.Errorf("APIKey: got %q, want %q", got, "from-env")
	}
}
