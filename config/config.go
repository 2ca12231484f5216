// Package config provides a reusable loader for rollupnode's configuration
// files and environment variables. It mirrors the teacher's
// pkg/config/config.go merge-default-then-env-override shape, restructured
// around the rollup's own sections instead of a VM/P2P/consensus node's.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rollupnode/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for any of rollupnode's binaries
// (server, prover, data-restore, key-generator). Each binary reads only the
// sections it needs.
type Config struct {
	Settlement struct {
		Gateways        []string `mapstructure:"gateways" json:"gateways"`
		ContractAddress string   `mapstructure:"contract_address" json:"contract_address"`
		ChainID         int64    `mapstructure:"chain_id" json:"chain_id"`
		OperatorKeyHex  string   `mapstructure:"operator_key_hex" json:"operator_key_hex"`
		FromBlock       uint64   `mapstructure:"from_block" json:"from_block"`
	} `mapstructure:"settlement" json:"settlement"`

	CommitQueue struct {
		MaxPendingTxs   int   `mapstructure:"max_pending_txs" json:"max_pending_txs"`
		GasLimit        uint64 `mapstructure:"gas_limit" json:"gas_limit"`
		StuckAfterBlocks uint64 `mapstructure:"stuck_after_blocks" json:"stuck_after_blocks"`
		InitialMaxGasPrice string `mapstructure:"initial_max_gas_price" json:"initial_max_gas_price"`
		PollIntervalMS  int   `mapstructure:"poll_interval_ms" json:"poll_interval_ms"`
	} `mapstructure:"commit_queue" json:"commit_queue"`

	StateKeeper struct {
		MaxChunks     int    `mapstructure:"max_chunks" json:"max_chunks"`
		MaxGas        uint64 `mapstructure:"max_gas" json:"max_gas"`
		MaxOperations int    `mapstructure:"max_operations" json:"max_operations"`
		MaxIdleSeconds int64 `mapstructure:"max_idle_seconds" json:"max_idle_seconds"`
	} `mapstructure:"state_keeper" json:"state_keeper"`

	Persistence struct {
		DSN             string `mapstructure:"dsn" json:"dsn"`
		MaxOpenConns    int    `mapstructure:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns    int    `mapstructure:"max_idle_conns" json:"max_idle_conns"`
		WALPath         string `mapstructure:"wal_path" json:"wal_path"`
		SnapshotPath    string `mapstructure:"snapshot_path" json:"snapshot_path"`
		ArchivePath     string `mapstructure:"archive_path" json:"archive_path"`
		SnapshotInterval int   `mapstructure:"snapshot_interval" json:"snapshot_interval"`
		PruneInterval   int    `mapstructure:"prune_interval" json:"prune_interval"`
	} `mapstructure:"persistence" json:"persistence"`

	Prover struct {
		Target          string `mapstructure:"target" json:"target"`
		PollIntervalMS  int    `mapstructure:"poll_interval_ms" json:"poll_interval_ms"`
	} `mapstructure:"prover" json:"prover"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides, then applies process environment variables on top (a .env file
// in the working directory is loaded first, if present, exactly like the
// teacher's node configuration). The resulting configuration is stored in
// AppConfig and returned.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional .env; absence is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ROLLUPNODE_ENV environment
// variable to pick the environment-specific override file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("ROLLUPNODE_ENV", ""))
}
