// Package config 导入服务配置
//
// 加载顺序：内置默认值 → YAML 配置文件（可选）→ 环境变量。
// 运行期参数（文件路径、设备、用户等）由 main 的命令行参数最终覆盖。
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig PostgreSQL 连接配置（本体术语库）
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis 配置（运行事件流）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// MongoConfig MongoDB 配置（bucket 文档与映射存储）
type MongoConfig struct {
	URI                string `yaml:"uri"`
	Database           string `yaml:"database"`
	Collection         string `yaml:"collection"`
	MappingsCollection string `yaml:"mappings_collection"`
}

// OntologyConfig 本体配置
type OntologyConfig struct {
	DB DatabaseConfig `yaml:"db"`

	// RootIRI 根概念 IRI，远程查到的新术语作为占位类挂在其下
	RootIRI string `yaml:"root_iri"`

	// OLSBaseURL Ontology Lookup Service 接口地址
	OLSBaseURL string `yaml:"ols_base_url"`
}

// ImporterConfig 单次导入运行的参数
type ImporterConfig struct {
	File     string `yaml:"file"`
	Username string `yaml:"username"`
	Device   string `yaml:"device"`

	// Period 采样周期标签的兜底值；设备自身声明的周期优先
	Period string `yaml:"period"`

	// MaxSamples 单个 bucket 的容量上限
	MaxSamples int `yaml:"max_samples"`

	// Preview 只渲染 filter/update 对，不落库
	Preview      bool `yaml:"preview"`
	PreviewLimit int  `yaml:"preview_limit"`

	// Mapping 导入完成后是否进入交互式语义映射会话
	Mapping bool `yaml:"mapping"`
}

// Config 导入服务配置
type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	Ontology OntologyConfig `yaml:"ontology"`
	Redis    RedisConfig    `yaml:"redis"`
	Importer ImporterConfig `yaml:"importer"`

	// Devices 设备名 → 设备编号
	Devices map[string]string `yaml:"devices"`

	// Users 用户别名 → 用户编号
	Users map[string]string `yaml:"users"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置
// path 为 YAML 配置文件路径，为空或文件不存在时仅用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadEnv()
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Mongo.URI = "mongodb://localhost:27017"
	cfg.Mongo.Database = "COPH"
	cfg.Mongo.Collection = "measurements"
	cfg.Mongo.MappingsCollection = "mappings"

	cfg.Ontology.DB.Host = "localhost"
	cfg.Ontology.DB.Port = 5432
	cfg.Ontology.DB.User = "postgres"
	cfg.Ontology.DB.Password = "postgres"
	cfg.Ontology.DB.Database = "coph_ontology"
	cfg.Ontology.DB.SSLMode = "disable"
	cfg.Ontology.RootIRI = "http://www.semanticweb.org/ontologies/COPH.owl#Thing"
	cfg.Ontology.OLSBaseURL = "https://www.ebi.ac.uk/ols/api"

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Stream = "coph:import:events"

	cfg.Importer.MaxSamples = 1500
	cfg.Importer.PreviewLimit = 100

	// 设备编号与用户别名沿用既有数据约定，可在配置文件中覆盖
	cfg.Devices = map[string]string{
		"move_ecg":            "0",
		"flow":                "1",
		"amazfit_bip":         "2",
		"mimic_chartevents":   "3",
		"mimic_mortality":     "4",
		"mimic_diagnoses":     "5",
		"mimic_prescriptions": "6",
		"mimic_procedures":    "7",
		"mimic_sepsis":        "8",
		"mimic_admission":     "9",
	}
	cfg.Users = map[string]string{
		"daniel bloor": "0",
		"thirty six":   "36",
		"anonymous":    "anon",
	}

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	return cfg
}

func (cfg *Config) loadEnv() {
	cfg.Mongo.URI = getEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", cfg.Mongo.Database)
	cfg.Mongo.Collection = getEnv("MONGO_COLLECTION", cfg.Mongo.Collection)
	cfg.Mongo.MappingsCollection = getEnv("MONGO_MAPPINGS_COLLECTION", cfg.Mongo.MappingsCollection)

	cfg.Ontology.DB.Host = getEnv("ONTO_DB_HOST", cfg.Ontology.DB.Host)
	cfg.Ontology.DB.Port = getEnvInt("ONTO_DB_PORT", cfg.Ontology.DB.Port)
	cfg.Ontology.DB.User = getEnv("ONTO_DB_USER", cfg.Ontology.DB.User)
	cfg.Ontology.DB.Password = getEnv("ONTO_DB_PASSWORD", cfg.Ontology.DB.Password)
	cfg.Ontology.DB.Database = getEnv("ONTO_DB_NAME", cfg.Ontology.DB.Database)
	cfg.Ontology.DB.SSLMode = getEnv("ONTO_DB_SSLMODE", cfg.Ontology.DB.SSLMode)
	cfg.Ontology.RootIRI = getEnv("ONTO_ROOT_IRI", cfg.Ontology.RootIRI)
	cfg.Ontology.OLSBaseURL = getEnv("OLS_BASE_URL", cfg.Ontology.OLSBaseURL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", cfg.Redis.Stream)

	cfg.Importer.Username = getEnv("IMPORT_USERNAME", cfg.Importer.Username)
	cfg.Importer.Device = getEnv("IMPORT_DEVICE", cfg.Importer.Device)
	cfg.Importer.Period = getEnv("IMPORT_PERIOD", cfg.Importer.Period)
	cfg.Importer.MaxSamples = getEnvInt("IMPORT_MAX_SAMPLES", cfg.Importer.MaxSamples)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// ResolveUser 将用户别名解析为用户编号；未登记的别名原样使用
func (cfg *Config) ResolveUser(name string) string {
	if id, ok := cfg.Users[name]; ok {
		return id
	}
	return name
}

// ResolveDevice 将设备名解析为设备编号
func (cfg *Config) ResolveDevice(name string) (string, bool) {
	id, ok := cfg.Devices[name]
	return id, ok
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
