package update

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// We can't inject the URL, so we test cache+compare+normalize behavior and the no-network/CI paths.
func TestCheck_NoNetworkOrCI(t *testing.T) {
	t.Setenv("CI", "1")
	if latest, newer, err := Check("1.0.0", false); err != nil || latest != "" || newer {
		t.Fatalf("expected no-op in CI; got latest=%q newer=%v err=%v", latest, newer, err)
	}
}

func TestNormalizeAndIsNewer(t *testing.T) {
	if normalize(" v1.2.3 ") != "1.2.3" {
		t.Fatalf("normalize failed")
	}
	if isNewer("1.2.3", "1.2.3") {
		t.Fatalf("equal versions are not newer")
	}
	if !isNewer("1.3.0", "1.2.9") {
		t.Fatalf("1.3.0 should be newer than 1.2.9")
	}
	if isNewer("1.2.0", "1.2.1") {
		t.Fatalf("1.2.0 is not newer than 1.2.1")
	}
	if isNewer("devel", "1.0.0") {
		t.Fatalf("unparseable versions must never report newer")
	}
}

func TestCheck_UsesCacheWhenFresh(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CI", "")
	c := cache{LastChecked: time.Now(), Latest: "1.2.3"}
	path := filepath.Join(dir, "gauntlet", cacheFileName)
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	b, _ := json.Marshal(c)
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
	latest, newer, err := Check("1.2.2", false)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "1.2.3" || !newer {
		t.Fatalf("expected cached latest=1.2.3 and newer=true; got latest=%q newer=%v", latest, newer)
	}
}
