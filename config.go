package main

import (
	"errors"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/stemstr/arweave-upload/internal/db"
	"github.com/stemstr/arweave-upload/internal/storage/bundlr"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

const (
	defaultPort                 = 8081
	defaultDBType               = db.TypeSQLite
	defaultDBFile               = "quotes.db"
	defaultBundlrURI            = "https://node1.bundlr.network"
	defaultIPFSGateway          = "https://ipfs.io/ipfs/"
	defaultMinGasFeeGwei        = 30
	defaultVerifyTimeoutSeconds = 10
	defaultLogLevel             = "info"
)

type Config struct {
	// API settings
	Port     int    `yaml:"port" envconfig:"PORT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Persistence
	DBType      string `yaml:"db_type" envconfig:"DB_TYPE"`
	DBFile      string `yaml:"db_file" envconfig:"DB_FILE"`
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"`

	// Settlement
	PrivateKey           string `yaml:"private_key" envconfig:"PRIVATE_KEY"`
	MinGasFeeGwei        int64  `yaml:"min_gas_fee" envconfig:"MIN_GAS_FEE"`
	StrictGasCheck       bool   `yaml:"strict_gas_check" envconfig:"STRICT_GAS_CHECK"`
	VerifyTimeoutSeconds int    `yaml:"verify_timeout_seconds" envconfig:"VERIFY_TIMEOUT_SECONDS"`

	// Storage network
	BundlrURI       string `yaml:"bundlr_uri" envconfig:"BUNDLR_URI"`
	BundlrChunkSize int    `yaml:"chunk_size" envconfig:"BUNDLR_CHUNK_SIZE"`
	BundlrBatchSize int    `yaml:"batch_size" envconfig:"BUNDLR_BATCH_SIZE"`

	// Object sources
	IPFSGateway string `yaml:"ipfs_gateway" envconfig:"IPFS_GATEWAY"`
	SpoolDir    string `yaml:"spool_dir" envconfig:"SPOOL_DIR"`
	S3Region    string `yaml:"s3_region" envconfig:"S3_REGION"`
	S3Endpoint  string `yaml:"s3_endpoint" envconfig:"S3_ENDPOINT"`

	// Operator alerts
	NotifierNsec   string   `yaml:"notifier_nsec" envconfig:"NOTIFIER_NSEC"`
	NotifierRelays []string `yaml:"notifier_relays" envconfig:"NOTIFIER_RELAYS"`

	Tokens []tokens.Token `yaml:"tokens" ignored:"true"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

// Load Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DBType == "" {
		c.DBType = defaultDBType
	}
	if c.DBFile == "" {
		c.DBFile = defaultDBFile
	}
	if c.MinGasFeeGwei == 0 {
		c.MinGasFeeGwei = defaultMinGasFeeGwei
	}
	if c.VerifyTimeoutSeconds == 0 {
		c.VerifyTimeoutSeconds = defaultVerifyTimeoutSeconds
	}
	if c.BundlrURI == "" {
		c.BundlrURI = defaultBundlrURI
	}
	if c.BundlrChunkSize == 0 {
		c.BundlrChunkSize = bundlr.DefaultChunkSize
	}
	if c.BundlrBatchSize == 0 {
		c.BundlrBatchSize = bundlr.DefaultBatchSize
	}
	if c.IPFSGateway == "" {
		c.IPFSGateway = defaultIPFSGateway
	}
}

func (c *Config) validate() error {
	if c.PrivateKey == "" {
		return errors.New("private_key is required")
	}
	if c.DBType == db.TypePostgres && c.DatabaseURL == "" {
		return errors.New("database_url is required for postgres")
	}
	if len(c.Tokens) == 0 {
		return errors.New("no payment tokens configured")
	}
	for _, t := range c.Tokens {
		if t.ChainID <= 0 || t.Address == "" || t.Currency == "" || t.ProviderURL == "" {
			return errors.New("tokens need chain_id, token_address, currency and provider_url")
		}
	}
	return nil
}
