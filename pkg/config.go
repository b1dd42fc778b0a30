package sumcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Config represents the sha1p configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Strong hash algorithm
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (-1=silent, 0=info, 1=debug, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int    // Number of concurrent hash workers (default: 4)
	FlushBatch  int    // Processed files between flushes (default: 100)
	HashBuffer  string // Read buffer for the strong hash (default: "2M")
	QuickSample string // Sample size for the quick fingerprint (default: "64K")
}

// ScanConfig represents candidate selection configuration
type ScanConfig struct {
	DotDirs   bool     `ini:"dot_dirs"`
	Recursive bool     `ini:"recursive"`
	Exclude   []string `ini:"exclude"`
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Verbose     *VerboseConfig
	Performance *PerformanceConfig
	Scan        *ScanConfig
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/sha1p/config
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "sha1p", "config"), nil
}

// LoadConfig loads configuration from configPath, writing a default file if none exists.
// A default file that cannot be written is not an error; the defaults stay in memory.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); err != nil {
		// missing, or a path that can never hold a file
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			Warnf("failed to create config directory for %s: %v", configPath, err)
			return cfg, nil
		}
		if err := cfg.Save(); err != nil {
			Warnf("failed to save default config %s: %v", configPath, err)
		}
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile

	return cfg, nil
}

// NewDefaultConfig returns an in-memory config that is never saved
func NewDefaultConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	if err := cfg.setDefaults(); err != nil {
		// only fails on an invalid section or key name
		panic(err)
	}
	return cfg
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	defaults := []struct {
		section string
		key     string
		value   string
	}{
		{"filehash", "default", "sha1"},
		{"verbose", "level", "0"},
		{"verbose", "debug", ""},
		{"performance", "hash_workers", strconv.Itoa(DefaultHashWorkers)},
		{"performance", "flush_batch", strconv.Itoa(DefaultFlushBatch)},
		{"performance", "hash_buffer", DefaultHashBuffer},
		{"performance", "quick_sample", DefaultQuickSample},
		{"scan", "dot_dirs", "false"},
		{"scan", "recursive", "false"},
		{"scan", "exclude", ""},
	}

	for _, d := range defaults {
		section, err := c.ini.GetSection(d.section)
		if err != nil {
			section, err = c.ini.NewSection(d.section)
			if err != nil {
				return fmt.Errorf("failed to create %s section: %w", d.section, err)
			}
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}

	return nil
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	hashConfig := &HashConfig{
		Default: "sha1",
	}

	if c.ini.HasSection("filehash") {
		section := c.ini.Section("filehash")
		if section.HasKey("default") {
			hashConfig.Default = section.Key("default").String()
		}
	}

	return hashConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers,
		FlushBatch:  DefaultFlushBatch,
		HashBuffer:  DefaultHashBuffer,
		QuickSample: DefaultQuickSample,
	}

	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
		if section.HasKey("flush_batch") {
			if batch, err := section.Key("flush_batch").Int(); err == nil {
				performanceConfig.FlushBatch = batch
			}
		}
		if v := section.Key("hash_buffer").String(); v != "" {
			performanceConfig.HashBuffer = v
		}
		if v := section.Key("quick_sample").String(); v != "" {
			performanceConfig.QuickSample = v
		}
	}

	return performanceConfig
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if err := section.MapTo(scanConfig); err != nil {
			Warnf("invalid [scan] section in %s: %v", c.configPath, err)
			return &ScanConfig{}
		}
	}

	// ini splits on commas but keeps empty and padded values
	patterns := scanConfig.Exclude[:0]
	for _, p := range scanConfig.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	scanConfig.Exclude = patterns

	return scanConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Verbose:     c.GetVerboseConfig(),
		Performance: c.GetPerformanceConfig(),
		Scan:        c.GetScanConfig(),
	}
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config has no file path")
	}
	return c.ini.SaveTo(c.configPath)
}

// overrideKeys maps override names to section.key
var overrideKeys = map[string][2]string{
	"default":      {"filehash", "default"},
	"level":        {"verbose", "level"},
	"debug":        {"verbose", "debug"},
	"hash_workers": {"performance", "hash_workers"},
	"flush_batch":  {"performance", "flush_batch"},
	"hash_buffer":  {"performance", "hash_buffer"},
	"quick_sample": {"performance", "quick_sample"},
	"dot_dirs":     {"scan", "dot_dirs"},
	"recursive":    {"scan", "recursive"},
	"exclude":      {"scan", "exclude"},
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "hash_workers:8", "debug:flush"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		target, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: default, level, debug, hash_workers, flush_batch, hash_buffer, quick_sample, dot_dirs, recursive, exclude)", key)
		}
		c.ini.Section(target[0]).Key(target[1]).SetValue(value)
	}

	return c.Validate()
}

// Validate checks every configured value
func (c *Config) Validate() error {
	all := c.GetAllConfig()

	if err := ValidateHashAlgorithm(all.Hash.Default); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return err
	}
	if err := ValidateHashWorkers(all.Performance.HashWorkers); err != nil {
		return err
	}
	if all.Performance.FlushBatch < 1 {
		return fmt.Errorf("flush batch must be at least 1, got: %d", all.Performance.FlushBatch)
	}
	if _, err := ParseHumanSize(all.Performance.HashBuffer); err != nil {
		return fmt.Errorf("invalid hash_buffer: %w", err)
	}
	if _, err := ParseHumanSize(all.Performance.QuickSample); err != nil {
		return fmt.Errorf("invalid quick_sample: %w", err)
	}
	if _, err := CompileExcludes(all.Scan.Exclude); err != nil {
		return err
	}

	return nil
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	switch strings.ToLower(algorithm) {
	case "sha1", "sha256", "sha512":
		return nil
	default:
		return fmt.Errorf("unsupported hash algorithm: %s (supported: sha1, sha256, sha512)", algorithm)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < LevelSilent || level > LevelTrace {
		return fmt.Errorf("invalid verbose level: %d (supported: -1 to 3)", level)
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > 64 {
		return fmt.Errorf("hash workers should not exceed 64, got: %d", workers)
	}
	return nil
}

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (int, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	var numPart string
	var suffix string
	for i, char := range sizeStr {
		if char >= '0' && char <= '9' || char == '.' {
			numPart += string(char)
		} else {
			suffix = sizeStr[i:]
			break
		}
	}

	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier int64 = 1
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	result := int64(num * float64(multiplier))
	if result <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if result > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}

	return int(result), nil
}
