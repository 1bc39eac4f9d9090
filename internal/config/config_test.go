package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-vfs/internal/vfs"
)

func TestInitializeDefaults(t *testing.T) {
	t.Setenv("VFS_ENV", "development")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if ConfigLoaded {
		t.Errorf("ConfigLoaded = true without a config file")
	}
	if Instance.Container.ClusterSize != vfs.DefaultClusterSize {
		t.Errorf("cluster_size = %d, want %d", Instance.Container.ClusterSize, vfs.DefaultClusterSize)
	}
	if Instance.LogFormat != "human" {
		t.Errorf("log_format = %q, want human", Instance.LogFormat)
	}
}

func TestInitializeFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go-vfs.yaml")
	data := []byte("debug: true\ncontainer:\n  path: /data/store.vfs\n  cache_size: 8\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VFS_CONTAINER_CLUSTER_SIZE", "4096")

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !ConfigLoaded || ConfigFile != path {
		t.Errorf("ConfigLoaded = %v, ConfigFile = %q", ConfigLoaded, ConfigFile)
	}
	if !Instance.Debug || Instance.Container.Path != "/data/store.vfs" || Instance.Container.CacheSize != 8 {
		t.Errorf("file values not applied: %+v", Instance)
	}
	if Instance.Container.ClusterSize != 4096 {
		t.Errorf("cluster_size = %d, want 4096 from the environment", Instance.Container.ClusterSize)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("VFS_ENV", "development")
	if err := Initialize(""); err != nil {
		t.Fatal(err)
	}
	Instance.Container.Label = "ARCHIVE"
	Instance.Container.CacheSize = 12

	path := filepath.Join(t.TempDir(), "nested", "go-vfs.yaml")
	if err := SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if Instance.Container.Label != "ARCHIVE" || Instance.Container.CacheSize != 12 {
		t.Errorf("saved values not read back: %+v", Instance.Container)
	}
}

func TestInitializeBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("debug: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(path); err == nil {
		t.Errorf("Initialize accepted a malformed file")
	}
}
