package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Chains      []ChainConfig     `mapstructure:"chains"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Uploads     UploadsConfig     `mapstructure:"uploads"`
	Graders     GradersConfig     `mapstructure:"graders"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	ID                 string `mapstructure:"id"`
	Name               string `mapstructure:"name"`
	RPCURL             string `mapstructure:"rpc_url"`
	ChainID            uint64 `mapstructure:"chain_id"`
	NFTAddress         string `mapstructure:"nft_address"`
	MarketplaceAddress string `mapstructure:"marketplace_address"`
	StartBlock         int64  `mapstructure:"start_block"`
	ConfirmationBlocks int    `mapstructure:"confirmation_blocks"`
	PullInterval       int    `mapstructure:"pull_interval"`
	BatchSize          int    `mapstructure:"batch_size"`
	Enabled            bool   `mapstructure:"enabled"`
}

// MarketplaceConfig 市场参数，单位万分之一
type MarketplaceConfig struct {
	FeeBasisPoints     int64            `mapstructure:"fee_basis_points"`
	RoyaltyBasisPoints int64            `mapstructure:"royalty_basis_points"`
	RoyaltyBeneficiary string           `mapstructure:"royalty_beneficiary"`
	GradeMultipliers   map[string]int64 `mapstructure:"grade_multipliers"`
}

type UploadsConfig struct {
	WeeklyLimit int `mapstructure:"weekly_limit"`
}

type GradersConfig struct {
	Addresses []string `mapstructure:"addresses"`
}

type SnapshotConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CronExpr string `mapstructure:"cron_expr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	// .env仅用于覆盖本地开发环境变量，缺失不报错
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Uploads.WeeklyLimit <= 0 {
		return nil, fmt.Errorf("uploads.weekly_limit must be positive, got %d", config.Uploads.WeeklyLimit)
	}

	return &config, nil
}

func (c *Config) GetEnabledChains() []ChainConfig {
	var enabled []ChainConfig
	for _, chain := range c.Chains {
		if chain.Enabled {
			enabled = append(enabled, chain)
		}
	}
	return enabled
}
