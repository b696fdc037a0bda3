package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for drop server configuration
const (
	EnvDropPort         = "DROP_PORT"
	EnvDropMerkleRoot   = "DROP_MERKLE_ROOT"
	EnvDropStoreType    = "DROP_STORE_TYPE"
	EnvDropDataDir      = "DROP_DATA_DIR"
	EnvDropRedisAddress = "DROP_REDIS_ADDRESS"
	EnvDropRedisDB      = "DROP_REDIS_DB"
	EnvDropPoolSupply   = "DROP_POOL_SUPPLY"
	EnvDropMaxProofLen  = "DROP_MAX_PROOF_LEN"
	EnvDropClaimRate    = "DROP_CLAIM_RATE"
	EnvDropVerbose      = "DROP_VERBOSE"
)

// StoreType selects the claim store backend.
type StoreType string

func (s StoreType) String() string {
	return string(s)
}

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// ServerConfig holds the drop server configuration.
type ServerConfig struct {
	Port         int
	MerkleRoot   string // 32-byte hex root the distributor commits to
	StoreType    StoreType
	DataDir      string // badger data directory
	RedisAddress string
	RedisDB      int
	PoolSupply   string  // initial pool balance, decimal or 0x-hex
	MaxProofLen  int     // claim endpoint proof bound; 0 disables
	ClaimRate    float64 // claims per second admitted by the limiter; 0 disables
	Verbose      bool
}

// Root parses the configured merkle root. Call Validate first.
func (c *ServerConfig) Root() [32]byte {
	return common.HexToHash(c.MerkleRoot)
}

// Validate checks the configuration, collecting every problem instead of
// stopping at the first.
func (c *ServerConfig) Validate() error {
	var errs field.ErrorList
	root := field.NewPath("config")

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, field.Invalid(root.Child("port"), c.Port, "must be between 1 and 65535"))
	}

	if c.MerkleRoot == "" {
		errs = append(errs, field.Required(root.Child("merkleRoot"), "a 32-byte hex root is required"))
	} else if raw, err := hexutil.Decode(c.MerkleRoot); err != nil {
		errs = append(errs, field.Invalid(root.Child("merkleRoot"), c.MerkleRoot, fmt.Sprintf("not valid hex: %v", err)))
	} else if len(raw) != 32 {
		errs = append(errs, field.Invalid(root.Child("merkleRoot"), c.MerkleRoot, fmt.Sprintf("must be 32 bytes, got %d", len(raw))))
	}

	switch c.StoreType {
	case StoreTypeMemory:
	case StoreTypeBadger:
		if c.DataDir == "" {
			errs = append(errs, field.Required(root.Child("dataDir"), "required for the badger store"))
		}
	case StoreTypeRedis:
		if c.RedisAddress == "" {
			errs = append(errs, field.Required(root.Child("redisAddress"), "required for the redis store"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			errs = append(errs, field.Invalid(root.Child("redisDB"), c.RedisDB, "must be between 0 and 15"))
		}
	default:
		errs = append(errs, field.NotSupported(root.Child("storeType"), c.StoreType,
			[]string{string(StoreTypeMemory), string(StoreTypeBadger), string(StoreTypeRedis)}))
	}

	if c.MaxProofLen < 0 {
		errs = append(errs, field.Invalid(root.Child("maxProofLen"), c.MaxProofLen, "must not be negative"))
	}
	if c.ClaimRate < 0 {
		errs = append(errs, field.Invalid(root.Child("claimRate"), c.ClaimRate, "must not be negative"))
	}

	return errs.ToAggregate()
}
