// Package config reads modelcore settings from MODELCORE_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"modelcore/internal/blob"
)

// Prefix is prepended to every variable name.
const Prefix = "MODELCORE_"

// Config holds all process configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// ModelIDPrefix is prepended to generated model IDs.
	ModelIDPrefix string `env:"MODEL_ID_PREFIX" envDefault:"http://model.geneontology.org/"`
	// TBoxPath points at a YAML schema; empty uses an empty TBox named TBoxIRI.
	TBoxPath       string `env:"TBOX_PATH"`
	TBoxIRI        string `env:"TBOX_IRI"`
	StrictReasoner bool   `env:"STRICT_REASONER" envDefault:"false"`

	ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	ImportWorkers int           `env:"IMPORT_WORKERS" envDefault:"8"`

	Storage Storage `envPrefix:"STORAGE_"`
	Blob    Blob    `envPrefix:"BLOB_"`
}

// Storage selects the durable partition store.
type Storage struct {
	// Driver is one of memory, sqlite, postgres, badger or blob.
	Driver         string `env:"DRIVER" envDefault:"sqlite"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"modelcore.db"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	BadgerDir      string `env:"BADGER_DIR" envDefault:"modelcore.badger"`
	BadgerInMemory bool   `env:"BADGER_IN_MEMORY" envDefault:"false"`
	// BlobPrefix is the key prefix of partitions when Driver is blob.
	BlobPrefix string `env:"BLOB_PREFIX" envDefault:"partitions/"`
}

// Blob configures the blob store backing the blob partition driver.
type Blob struct {
	Driver string        `env:"DRIVER" envDefault:"fs"`
	FSRoot string        `env:"FS_ROOT" envDefault:"./data/blobs"`
	S3     blob.S3Config `envPrefix:"S3_"`
}

// BlobConfig converts to the blob factory configuration.
func (b Blob) BlobConfig() blob.Config {
	return blob.Config{Driver: b.Driver, FSRoot: b.FSRoot, S3: b.S3}
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "badger":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%sSTORAGE_POSTGRES_DSN required for postgres driver", Prefix)
		}
	case "blob":
		switch blob.Driver(c.Blob.Driver) {
		case blob.DriverFilesystem, blob.DriverMemory:
		case blob.DriverS3:
			if c.Blob.S3.Bucket == "" {
				return fmt.Errorf("%sBLOB_S3_BUCKET required for s3 blob driver", Prefix)
			}
		default:
			return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.ImportWorkers <= 0 {
		return fmt.Errorf("%sIMPORT_WORKERS must be positive", Prefix)
	}
	return nil
}
