// Package config loads the ASP's environment into a validated Config:
// computed defaults, an explicit Validate(), and plain key/value parsing.
// Env vars are read directly with os.Getenv rather than through a
// third-party env-binding library, since the parsing involved is a
// handful of scalar fields with no nested structure to justify one.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zylith-labs/asp/apperr"
)

// Config holds everything the ASP needs to start: the HTTP listen address,
// the Starknet RPC endpoint, the admin account used to sign relayed
// transactions, the deployed contract addresses, and local file paths.
type Config struct {
	Host string
	Port uint16

	RPCURL string

	AdminAddress string

	// KeystorePath and KeystorePassword are accepted because spec
	// configuration names them, but nothing consumes them: RealChain reads
	// the signing key straight from ADMIN_PRIVATE_KEY, and keystore file
	// decryption is out of scope (see DESIGN.md's admin key handling note).
	KeystorePath     string
	KeystorePassword string

	CoordinatorAddr  string
	PoolAddr         string
	DatabasePath     string
	WorkerPath       string
	SyncPollInterval time.Duration
}

type deployedAddresses struct {
	Coordinator string `json:"coordinator"`
	Pool        string `json:"pool"`
}

// DefaultConfig returns a Config with sensible computed defaults; fields
// with no sensible default are left empty and are rejected by Validate.
func DefaultConfig() Config {
	return Config{
		Host:             "127.0.0.1",
		Port:             3000,
		DatabasePath:     "zylith_asp.db",
		WorkerPath:       "worker/worker.mjs",
		SyncPollInterval: 15 * time.Second,
	}
}

// Load builds a Config from the process environment, applying defaults for
// unset optional variables. The coordinator/pool addresses come from a
// deployed_addresses.json file when DEPLOYED_ADDRESSES_PATH (or its default
// location) resolves to a readable file; only when it does not are
// COORDINATOR_ADDRESS and POOL_ADDRESS read from the environment.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ASP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("ASP_PORT"); v != "" {
		port, err := parsePort(v)
		if err != nil {
			return Config{}, apperr.New(apperr.KindConfig, "ASP_PORT must be a valid port number")
		}
		cfg.Port = port
	}

	rpcURL, ok := os.LookupEnv("STARKNET_RPC_URL")
	if !ok || rpcURL == "" {
		return Config{}, apperr.New(apperr.KindConfig, "STARKNET_RPC_URL is required")
	}
	cfg.RPCURL = rpcURL

	adminAddress, ok := os.LookupEnv("ADMIN_ADDRESS")
	if !ok || adminAddress == "" {
		return Config{}, apperr.New(apperr.KindConfig, "ADMIN_ADDRESS is required")
	}
	cfg.AdminAddress = adminAddress

	keystorePath, ok := os.LookupEnv("KEYSTORE_PATH")
	if !ok || keystorePath == "" {
		return Config{}, apperr.New(apperr.KindConfig, "KEYSTORE_PATH is required")
	}
	cfg.KeystorePath = keystorePath

	keystorePassword, ok := os.LookupEnv("KEYSTORE_PASSWORD")
	if !ok || keystorePassword == "" {
		return Config{}, apperr.New(apperr.KindConfig, "KEYSTORE_PASSWORD is required")
	}
	cfg.KeystorePassword = keystorePassword

	addressesPath := os.Getenv("DEPLOYED_ADDRESSES_PATH")
	if addressesPath == "" {
		addressesPath = "scripts/deployed_addresses.json"
	}
	if content, err := os.ReadFile(addressesPath); err == nil {
		var addrs deployedAddresses
		if err := json.Unmarshal(content, &addrs); err != nil {
			return Config{}, apperr.Newf(apperr.KindConfig, "invalid deployed_addresses.json: %v", err)
		}
		cfg.CoordinatorAddr = addrs.Coordinator
		cfg.PoolAddr = addrs.Pool
	} else {
		coordinator, ok := os.LookupEnv("COORDINATOR_ADDRESS")
		if !ok || coordinator == "" {
			return Config{}, apperr.New(apperr.KindConfig, "COORDINATOR_ADDRESS is required")
		}
		pool, ok := os.LookupEnv("POOL_ADDRESS")
		if !ok || pool == "" {
			return Config{}, apperr.New(apperr.KindConfig, "POOL_ADDRESS is required")
		}
		cfg.CoordinatorAddr = coordinator
		cfg.PoolAddr = pool
	}

	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("WORKER_PATH"); v != "" {
		cfg.WorkerPath = v
	}
	if v := os.Getenv("SYNC_POLL_INTERVAL_SECS"); v != "" {
		secs, err := parseSeconds(v)
		if err != nil {
			return Config{}, apperr.New(apperr.KindConfig, "SYNC_POLL_INTERVAL_SECS must be a positive integer")
		}
		cfg.SyncPollInterval = secs
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all required fields are set and well-formed.
func (c Config) Validate() error {
	if c.Host == "" {
		return apperr.New(apperr.KindConfig, "host must not be empty")
	}
	if c.Port == 0 {
		return apperr.New(apperr.KindConfig, "port must be nonzero")
	}
	if c.RPCURL == "" {
		return apperr.New(apperr.KindConfig, "rpc_url is required")
	}
	if c.AdminAddress == "" {
		return apperr.New(apperr.KindConfig, "admin_address is required")
	}
	if c.CoordinatorAddr == "" {
		return apperr.New(apperr.KindConfig, "coordinator_address is required")
	}
	if c.PoolAddr == "" {
		return apperr.New(apperr.KindConfig, "pool_address is required")
	}
	if c.DatabasePath == "" {
		return apperr.New(apperr.KindConfig, "database_path must not be empty")
	}
	if c.WorkerPath == "" {
		return apperr.New(apperr.KindConfig, "worker_path must not be empty")
	}
	if c.SyncPollInterval <= 0 {
		return apperr.New(apperr.KindConfig, "sync_poll_interval must be positive")
	}
	return nil
}

func parsePort(v string) (uint16, error) {
	var n int
	if _, err := parseUint(v, &n); err != nil {
		return 0, err
	}
	if n <= 0 || n > 65535 {
		return 0, apperr.New(apperr.KindConfig, "port out of range")
	}
	return uint16(n), nil
}

func parseSeconds(v string) (time.Duration, error) {
	var n int
	if _, err := parseUint(v, &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, apperr.New(apperr.KindConfig, "interval must be positive")
	}
	return time.Duration(n) * time.Second, nil
}

// parseUint is a tiny base-10 integer parser, avoiding strconv's broader
// surface (hex/octal prefixes, sign handling) for config fields that are
// always plain positive decimal integers.
func parseUint(s string, out *int) (int, error) {
	if s == "" {
		return 0, apperr.New(apperr.KindConfig, "empty integer")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, apperr.New(apperr.KindConfig, "not a valid integer")
		}
		n = n*10 + int(r-'0')
	}
	*out = n
	return n, nil
}
