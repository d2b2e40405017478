package version

import "testing"

func TestGet_DefaultsToDev(t *testing.T) {
	info := Get()
	if info.Version != "dev" {
		t.Fatalf("expected dev, got %q", info.Version)
	}
}

func TestGet_ReportsGoVersion(t *testing.T) {
	if Get().GoVersion == "" {
		t.Fatal("expected a Go version from build info")
	}
}
