package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp switches into a fresh directory for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	workspace := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(workspace); err != nil {
		t.Fatalf("chdir workspace: %v", err)
	}
	return workspace
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configDirEnvKey, trustProjectConfigEnvKey, apiURLEnvKey, dbPathEnvKey,
		storageBackendEnvKey, storageRootEnvKey, attachmentAllowedMediaTypesEnvKey,
		attachmentMaxUploadBytesEnvKey, s3AccessKeyEnvKey, s3SecretKeyEnvKey,
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != "http://127.0.0.1:7480" {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.StorageBackend != StorageBackendLocal {
		t.Fatalf("expected local backend, got %q", cfg.StorageBackend)
	}
	if cfg.Attachments.MaxUploadBytes != 5*1024*1024 {
		t.Fatalf("expected 5 MiB upload default, got %d", cfg.Attachments.MaxUploadBytes)
	}
	if cfg.Attachments.GCBatchSize != DefaultAttachmentGCBatchSize {
		t.Fatalf("expected attachment gc batch default %d, got %d", DefaultAttachmentGCBatchSize, cfg.Attachments.GCBatchSize)
	}
	if !cfg.Attachments.S3.UseSSL {
		t.Fatal("expected s3 TLS by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "warn"
storage_backend = "s3"

[attachments]
max_upload_bytes = 1024
allowed_media_types = ["image/png", "text/plain"]

[attachments.s3]
endpoint = "minio:9000"
bucket = "notes"
use_ssl = false
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" || cfg.LogLevel != "warn" || cfg.StorageBackend != "s3" {
		t.Fatalf("unexpected top-level config %#v", cfg)
	}
	if cfg.Attachments.MaxUploadBytes != 1024 || len(cfg.Attachments.AllowedMediaTypes) != 2 {
		t.Fatalf("unexpected attachment config %#v", cfg.Attachments)
	}
	if cfg.Attachments.S3.Endpoint != "minio:9000" || cfg.Attachments.S3.Bucket != "notes" || cfg.Attachments.S3.UseSSL {
		t.Fatalf("unexpected s3 config %#v", cfg.Attachments.S3)
	}
	if cfg.Attachments.GCBatchSize != DefaultAttachmentGCBatchSize {
		t.Fatalf("expected untouched gc batch default, got %d", cfg.Attachments.GCBatchSize)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.jotter.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte("api_url = \n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"api_url",
		"db_path",
		"log_level",
		"storage_backend",
		"attachments.max_upload_bytes",
		"attachments.allowed_media_types",
		"attachments.storage_root",
		"attachments.gc_batch_size",
		"attachments.s3.bucket",
		"attachments.s3.secret_key",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("project_prefix") {
		t.Fatal("expected 'project_prefix' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		APIURL:         "http://test:1234",
		DBPath:         "/tmp/test.db",
		LogLevel:       "warn",
		StorageBackend: "s3",
		Attachments: AttachmentConfig{
			MaxUploadBytes:    123,
			AllowedMediaTypes: []string{"application/pdf", "text/plain"},
			StorageRoot:       "/srv/blobs",
			GCBatchSize:       789,
			S3:                S3Config{Bucket: "notes", SecretKey: "hunter2", UseSSL: true},
		},
	}

	tests := map[string]string{
		"api_url":                         "http://test:1234",
		"db_path":                         "/tmp/test.db",
		"log_level":                       "warn",
		"storage_backend":                 "s3",
		"attachments.max_upload_bytes":    "123",
		"attachments.allowed_media_types": "application/pdf,text/plain",
		"attachments.storage_root":        "/srv/blobs",
		"attachments.gc_batch_size":       "789",
		"attachments.s3.bucket":           "notes",
		"attachments.s3.secret_key":       "********",
		"attachments.s3.use_ssl":          "true",
	}
	for key, want := range tests {
		got, err := cfg.Get(key)
		if err != nil || got != want {
			t.Fatalf("Get(%q) = %q (err: %v), want %q", key, got, err, want)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.toml")
	if err := SetKey(path, "api_url", "http://127.0.0.1:9000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 config file, got %v", info.Mode().Perm())
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9000" {
		t.Fatalf("expected api_url to be set, got %q", cfg.APIURL)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("log_level = \"debug\"\napi_url = \"http://keep\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "log_level", "error"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected 'error', got %q", cfg.LogLevel)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	for key, value := range map[string]string{
		"invalid_key":                  "value",
		"attachments.max_upload_bytes": "-5",
		"attachments.gc_batch_size":    "lots",
		"attachments.s3.use_ssl":       "maybe",
		"storage_backend":              "ftp",
	} {
		if err := SetKey(path, key, value); err == nil {
			t.Fatalf("expected error for %s=%s", key, value)
		}
	}
}

func TestSetNestedAttachmentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attachments.toml")
	if err := SetKey(path, "attachments.gc_batch_size", "321"); err != nil {
		t.Fatalf("set nested key: %v", err)
	}
	if err := SetKey(path, "attachments.s3.bucket", "jotter"); err != nil {
		t.Fatalf("set doubly nested key: %v", err)
	}
	if err := SetKey(path, "attachments.allowed_media_types", "image/png, text/plain"); err != nil {
		t.Fatalf("set list key: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Attachments.GCBatchSize != 321 {
		t.Fatalf("expected gc_batch_size 321, got %d", cfg.Attachments.GCBatchSize)
	}
	if cfg.Attachments.S3.Bucket != "jotter" {
		t.Fatalf("expected s3 bucket, got %q", cfg.Attachments.S3.Bucket)
	}
	if len(cfg.Attachments.AllowedMediaTypes) != 2 || cfg.Attachments.AllowedMediaTypes[1] != "text/plain" {
		t.Fatalf("unexpected media types %#v", cfg.Attachments.AllowedMediaTypes)
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, configFileName), []byte("api_url = \"http://127.0.0.1:9001\"\n"), 0o644); err != nil {
		t.Fatalf("write override config: %v", err)
	}

	workspace := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("api_url = \"http://ignored\"\n"), 0o644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}

	t.Setenv(configDirEnvKey, configDir)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9001" {
		t.Fatalf("expected config-dir api_url override, got %q", cfg.APIURL)
	}
	if cfg.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.DBPath)
	}
	if cfg.Attachments.StorageRoot != filepath.Join(workspace, DefaultBlobDirName) {
		t.Fatalf("expected default workspace blob root, got %q", cfg.Attachments.StorageRoot)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(apiURLEnvKey, "http://example.com:8080")
	t.Setenv(dbPathEnvKey, "/tmp/override.db")
	t.Setenv("JOTTER_LOG_LEVEL", "debug")
	t.Setenv(storageBackendEnvKey, "S3")
	t.Setenv(storageRootEnvKey, "/tmp/blobs")
	t.Setenv(attachmentAllowedMediaTypesEnvKey, "text/plain; charset=utf-8, IMAGE/PNG, nonsense/")
	t.Setenv(attachmentMaxUploadBytesEnvKey, "2048")
	t.Setenv(s3SecretKeyEnvKey, "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" || cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("unexpected env overrides %#v", cfg)
	}
	// The CLI resolves JOTTER_LOG_LEVEL itself so it can warn on bad values.
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected config log level untouched by env, got %q", cfg.LogLevel)
	}
	if cfg.StorageBackend != StorageBackendS3 || cfg.Attachments.StorageRoot != "/tmp/blobs" {
		t.Fatalf("unexpected storage overrides %#v", cfg)
	}
	if got := cfg.Attachments.AllowedMediaTypes; len(got) != 2 || got[0] != "image/png" || got[1] != "text/plain" {
		t.Fatalf("unexpected normalized media types %#v", got)
	}
	if cfg.Attachments.MaxUploadBytes != 2048 || cfg.Attachments.S3.SecretKey != "from-env" {
		t.Fatalf("unexpected attachment overrides %#v", cfg.Attachments)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv(storageBackendEnvKey, "floppy")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestLoadFallsBackToDefaultLogLevelWhenConfiguredEmpty(t *testing.T) {
	clearEnv(t)
	homeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, configFileName), []byte("log_level = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	chdirTemp(t)
	t.Setenv("HOME", homeDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
}

func TestLoadProjectConfigTrust(t *testing.T) {
	tests := []struct {
		trust   string
		wantURL string
		trusted bool
	}{
		{"", "http://home", false},
		{"definitely-not-bool", "http://home", false},
		{"true", "http://project", true},
	}

	for _, tt := range tests {
		t.Run("trust="+tt.trust, func(t *testing.T) {
			clearEnv(t)
			homeDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(homeDir, configFileName), []byte("api_url = \"http://home\"\n"), 0o644); err != nil {
				t.Fatalf("write home config: %v", err)
			}
			workspace := chdirTemp(t)
			if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("api_url = \"http://project\"\n"), 0o644); err != nil {
				t.Fatalf("write project config: %v", err)
			}
			t.Setenv("HOME", homeDir)
			t.Setenv(trustProjectConfigEnvKey, tt.trust)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.APIURL != tt.wantURL {
				t.Fatalf("expected api_url %q, got %q", tt.wantURL, cfg.APIURL)
			}
			if (cfg.TrustedProjectConfigPath != "") != tt.trusted {
				t.Fatalf("unexpected trusted project path %q", cfg.TrustedProjectConfigPath)
			}
		})
	}
}
