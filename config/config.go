// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for training and serving.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Train     TrainConfig     `mapstructure:"train"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig is the configuration for the reference data store and the training registry.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
	MetaStore   string `mapstructure:"meta_store" validate:"required"`
	CacheStore  string `mapstructure:"cache_store"`
}

// BlobConfig is the configuration for the artifact store.
type BlobConfig struct {
	URI   string          `mapstructure:"uri" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
}

// TrainConfig is the configuration for the offline training job.
type TrainConfig struct {
	MaxK    int     `mapstructure:"max_k" validate:"gte=3"`
	Seed    int64   `mapstructure:"seed"`
	NInit   int     `mapstructure:"n_init" validate:"gt=0"`
	MaxIter int     `mapstructure:"max_iter" validate:"gt=0"`
	Tol     float64 `mapstructure:"tol" validate:"gte=0"`
	NJobs   int     `mapstructure:"n_jobs" validate:"gt=0"`
	Plot    bool    `mapstructure:"plot"`
}

// RecommendConfig is the configuration for online recommendation.
type RecommendConfig struct {
	DefaultN       int           `mapstructure:"default_n" validate:"gt=0"`
	LikedThreshold int           `mapstructure:"liked_threshold" validate:"gte=1,lte=5"`
	CacheSize      int           `mapstructure:"cache_size" validate:"gte=0"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// ServerConfig is the configuration for the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gt=0,lte=65535"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "csv://data/raw",
			MetaStore: "sqlite://data/processed/meta.db",
		},
		Blob: BlobConfig{
			URI: "data/processed",
		},
		Train: TrainConfig{
			MaxK:    10,
			Seed:    42,
			NInit:   10,
			MaxIter: 300,
			Tol:     1e-4,
			NJobs:   runtime.NumCPU(),
			Plot:    true,
		},
		Recommend: RecommendConfig{
			DefaultN:       5,
			LikedThreshold: 4,
			CacheSize:      1024,
			CacheTTL:       time.Minute,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8010,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.meta_store", defaultConfig.Database.MetaStore)
	// [blob]
	v.SetDefault("blob.uri", defaultConfig.Blob.URI)
	// [train]
	v.SetDefault("train.max_k", defaultConfig.Train.MaxK)
	v.SetDefault("train.seed", defaultConfig.Train.Seed)
	v.SetDefault("train.n_init", defaultConfig.Train.NInit)
	v.SetDefault("train.max_iter", defaultConfig.Train.MaxIter)
	v.SetDefault("train.tol", defaultConfig.Train.Tol)
	v.SetDefault("train.n_jobs", defaultConfig.Train.NJobs)
	v.SetDefault("train.plot", defaultConfig.Train.Plot)
	// [recommend]
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	v.SetDefault("recommend.liked_threshold", defaultConfig.Recommend.LikedThreshold)
	v.SetDefault("recommend.cache_size", defaultConfig.Recommend.CacheSize)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.data_store", "CINECLUSTER_DATA_STORE"},
	{"database.table_prefix", "CINECLUSTER_TABLE_PREFIX"},
	{"database.meta_store", "CINECLUSTER_META_STORE"},
	{"database.cache_store", "CINECLUSTER_CACHE_STORE"},
	{"blob.uri", "CINECLUSTER_BLOB_URI"},
	{"blob.s3.endpoint", "S3_ENDPOINT"},
	{"blob.s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"blob.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"blob.gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
	{"blob.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	{"train.max_k", "CINECLUSTER_MAX_K"},
	{"train.seed", "CINECLUSTER_SEED"},
	{"train.n_jobs", "CINECLUSTER_N_JOBS"},
	{"server.host", "CINECLUSTER_SERVER_HOST"},
	{"server.port", "CINECLUSTER_SERVER_PORT"},
}

// LoadConfig loads configuration from a TOML file. An empty path yields defaults overridden by the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

var dataStorePrefixes = []string{"csv://", "sqlite://", "mysql://", "postgres://", "postgresql://", "mongodb://", "mongodb+srv://"}

// Validate checks the configuration with struct tags.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		dsn := fl.Field().String()
		for _, prefix := range dataStorePrefixes {
			if strings.HasPrefix(dsn, prefix) {
				return true
			}
		}
		return false
	}); err != nil {
		return errors.Trace(err)
	}
	return validate.Struct(config)
}
