package storage

import (
	"flag"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ivan-cunha/feather-format/internal/compression"
)

// CompressionAuto selects a codec per block from the column type.
const CompressionAuto = "auto"

// Config configures the writer and reader.
type Config struct {
	Writer WriterConfig `yaml:"writer"`
	Reader ReaderConfig `yaml:"reader"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Writer.RegisterFlagsWithPrefix("writer.", f)
	cfg.Reader.RegisterFlagsWithPrefix("reader.", f)
}

func (cfg *Config) Validate() error {
	if err := cfg.Writer.Validate(); err != nil {
		return errors.Wrap(err, "invalid writer config")
	}
	if err := cfg.Reader.Validate(); err != nil {
		return errors.Wrap(err, "invalid reader config")
	}
	return nil
}

// DefaultConfig returns a Config holding the flag defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("defaults", flag.ContinueOnError))
	return cfg
}

// LoadConfigFile reads a YAML config file on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type WriterConfig struct {
	Compression     string `yaml:"compression"`
	OffsetWidth     int    `yaml:"offset_width"`
	DictionaryWidth int    `yaml:"dictionary_width"`
	Concurrency     int    `yaml:"concurrency"`
}

func (cfg *WriterConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Compression, prefix+"compression", compression.None,
		"Block compression codec: "+strings.Join(append(compression.Names(), CompressionAuto), ", ")+".")
	f.IntVar(&cfg.OffsetWidth, prefix+"offset-width", 0,
		"Byte width of variable-length offsets (4 or 8). 0 uses 4 and widens columns whose payload does not fit.")
	f.IntVar(&cfg.DictionaryWidth, prefix+"dictionary-width", 0,
		"Byte width of category codes (1, 2, 4 or 8). 0 picks the narrowest width for the level count.")
	f.IntVar(&cfg.Concurrency, prefix+"concurrency", 0,
		"Maximum number of columns encoded in parallel. 0 uses GOMAXPROCS.")
}

func (cfg *WriterConfig) Validate() error {
	if cfg.Compression != CompressionAuto {
		if _, err := compression.GetCompressor(cfg.Compression); err != nil {
			return errors.Errorf("unknown compression %q", cfg.Compression)
		}
	}
	switch cfg.OffsetWidth {
	case 0, 4, 8:
	default:
		return errors.Errorf("offset width must be 0, 4 or 8, got %d", cfg.OffsetWidth)
	}
	switch cfg.DictionaryWidth {
	case 0, 1, 2, 4, 8:
	default:
		return errors.Errorf("dictionary width must be 0, 1, 2, 4 or 8, got %d", cfg.DictionaryWidth)
	}
	if cfg.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	return nil
}

func (cfg *WriterConfig) concurrency() int {
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

type ReaderConfig struct {
	VerifyChecksums bool `yaml:"verify_checksums"`
	Concurrency     int  `yaml:"concurrency"`
}

func (cfg *ReaderConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.VerifyChecksums, prefix+"verify-checksums", true,
		"Verify the checksum of every block read.")
	f.IntVar(&cfg.Concurrency, prefix+"concurrency", 0,
		"Maximum number of columns decoded in parallel. 0 uses GOMAXPROCS.")
}

func (cfg *ReaderConfig) Validate() error {
	if cfg.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	return nil
}

func (cfg *ReaderConfig) concurrency() int {
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}
