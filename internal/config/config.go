package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7480"
	DefaultDBFileName     = ".jotter.db"
	DefaultBlobDirName    = ".jotter-blobs"
	DefaultLogLevel       = "info"
	DefaultStorageBackend = StorageBackendLocal

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"

	DefaultAttachmentMaxUploadBytes int64 = 5 << 20
	DefaultAttachmentGCBatchSize          = 500

	configFileName           = ".jotter.toml"
	configDirEnvKey          = "JOTTER_CONFIG_DIR"
	trustProjectConfigEnvKey = "JOTTER_TRUST_PROJECT_CONFIG"

	apiURLEnvKey         = "JOTTER_API_URL"
	dbPathEnvKey         = "JOTTER_DB"
	storageBackendEnvKey = "JOTTER_STORAGE_BACKEND"
	storageRootEnvKey    = "JOTTER_STORAGE_ROOT"

	attachmentAllowedMediaTypesEnvKey = "JOTTER_ATTACH_ALLOWED_MEDIA_TYPES"
	attachmentMaxUploadBytesEnvKey    = "JOTTER_ATTACH_MAX_UPLOAD_BYTES"

	s3AccessKeyEnvKey = "JOTTER_S3_ACCESS_KEY"
	s3SecretKeyEnvKey = "JOTTER_S3_SECRET_KEY"
)

// S3Config points the blob store at an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

// AttachmentConfig defines runtime configuration for attachment handling.
type AttachmentConfig struct {
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`
	StorageRoot       string   `toml:"storage_root"`
	GCBatchSize       int      `toml:"gc_batch_size"`
	S3                S3Config `toml:"s3"`
}

// Config defines runtime configuration for jotter.
type Config struct {
	APIURL                   string           `toml:"api_url"`
	DBPath                   string           `toml:"db_path"`
	LogLevel                 string           `toml:"log_level"`
	StorageBackend           string           `toml:"storage_backend"`
	Attachments              AttachmentConfig `toml:"attachments"`
	TrustedProjectConfigPath string           `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		LogLevel:       DefaultLogLevel,
		StorageBackend: DefaultStorageBackend,
		Attachments: AttachmentConfig{
			MaxUploadBytes: DefaultAttachmentMaxUploadBytes,
			GCBatchSize:    DefaultAttachmentGCBatchSize,
			S3:             S3Config{UseSSL: true},
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey)))
	return err == nil && value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"storage_backend",
	"attachments.max_upload_bytes",
	"attachments.allowed_media_types",
	"attachments.storage_root",
	"attachments.gc_batch_size",
	"attachments.s3.endpoint",
	"attachments.s3.bucket",
	"attachments.s3.access_key",
	"attachments.s3.secret_key",
	"attachments.s3.use_ssl",
	"attachments.s3.prefix",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are redacted.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "storage_backend":
		return c.StorageBackend, nil
	case "attachments.max_upload_bytes":
		return strconv.FormatInt(c.Attachments.MaxUploadBytes, 10), nil
	case "attachments.allowed_media_types":
		return strings.Join(c.Attachments.AllowedMediaTypes, ","), nil
	case "attachments.storage_root":
		return c.Attachments.StorageRoot, nil
	case "attachments.gc_batch_size":
		return strconv.Itoa(c.Attachments.GCBatchSize), nil
	case "attachments.s3.endpoint":
		return c.Attachments.S3.Endpoint, nil
	case "attachments.s3.bucket":
		return c.Attachments.S3.Bucket, nil
	case "attachments.s3.access_key":
		return c.Attachments.S3.AccessKey, nil
	case "attachments.s3.secret_key":
		if c.Attachments.S3.SecretKey == "" {
			return "", nil
		}
		return "********", nil
	case "attachments.s3.use_ssl":
		return strconv.FormatBool(c.Attachments.S3.UseSSL), nil
	case "attachments.s3.prefix":
		return c.Attachments.S3.Prefix, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// The file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cfg.applyEnv()

	cwd, _ := os.Getwd()
	if cfg.DBPath == "" && cwd != "" {
		cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
	}
	if cfg.Attachments.StorageRoot == "" && cwd != "" {
		cfg.Attachments.StorageRoot = filepath.Join(cwd, DefaultBlobDirName)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(dbPathEnvKey)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(storageBackendEnvKey)); v != "" {
		c.StorageBackend = v
	}
	if v := strings.TrimSpace(os.Getenv(storageRootEnvKey)); v != "" {
		c.Attachments.StorageRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(attachmentAllowedMediaTypesEnvKey)); v != "" {
		c.Attachments.AllowedMediaTypes = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv(attachmentMaxUploadBytesEnvKey)); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			c.Attachments.MaxUploadBytes = parsed
		}
	}
	if v := os.Getenv(s3AccessKeyEnvKey); v != "" {
		c.Attachments.S3.AccessKey = v
	}
	if v := os.Getenv(s3SecretKeyEnvKey); v != "" {
		c.Attachments.S3.SecretKey = v
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "attachments.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "attachments.gc_batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "attachments.s3.use_ssl":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "attachments.allowed_media_types":
		return splitCSV(value), nil
	case "storage_backend":
		backend, err := normalizeBackend(value)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func normalizeBackend(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	switch backend {
	case "":
		return DefaultStorageBackend, nil
	case StorageBackendLocal, StorageBackendS3:
		return backend, nil
	default:
		return "", fmt.Errorf("storage_backend must be %q or %q", StorageBackendLocal, StorageBackendS3)
	}
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	backend, err := normalizeBackend(c.StorageBackend)
	if err != nil {
		return err
	}
	c.StorageBackend = backend
	if c.Attachments.MaxUploadBytes <= 0 {
		c.Attachments.MaxUploadBytes = DefaultAttachmentMaxUploadBytes
	}
	if c.Attachments.GCBatchSize <= 0 {
		c.Attachments.GCBatchSize = DefaultAttachmentGCBatchSize
	}
	c.Attachments.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Attachments.AllowedMediaTypes)
	return nil
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
