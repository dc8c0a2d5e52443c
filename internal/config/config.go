package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// phone normalization
	CountryCode   string `envconfig:"COUNTRY_CODE" default:"57"`
	AddressSuffix string `envconfig:"ADDRESS_SUFFIX" default:"@c.us"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	// upload limits for /v1/broadcasts/import
	MaxImportBytes int64 `envconfig:"MAX_IMPORT_BYTES" default:"5242880"`

	DBPool PoolConfig
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// phone normalization
	CountryCode   string `envconfig:"COUNTRY_CODE" default:"57"`
	AddressSuffix string `envconfig:"ADDRESS_SUFFIX" default:"@c.us"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"1"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"900"`

	// bridge sidecar
	BridgeBaseURL string        `envconfig:"BRIDGE_BASE_URL" required:"true"`
	BridgeTimeout time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"30s"`

	// dispatch engine
	BatchSize     int           `envconfig:"BROADCAST_BATCH_SIZE" default:"5"`
	MessageDelay  time.Duration `envconfig:"BROADCAST_MESSAGE_DELAY" default:"1s"`
	BatchDelay    time.Duration `envconfig:"BROADCAST_BATCH_DELAY" default:"3s"`
	MaxRetries    int           `envconfig:"BROADCAST_MAX_RETRIES" default:"3"`
	SendTimeout   time.Duration `envconfig:"SEND_TIMEOUT" default:"20s"`
	GuardWait     time.Duration `envconfig:"GUARD_WAIT" default:"30s"`
	GuardPoll     time.Duration `envconfig:"GUARD_POLL" default:"1s"`
	SendRPS       float64       `envconfig:"SEND_RPS" default:"1"`
	SendBurst     int           `envconfig:"SEND_BURST" default:"1"`
	BreakerMaxReq uint32        `envconfig:"BREAKER_MAX_REQUESTS" default:"1"`

	// message audit log; either or both may be enabled
	MessageLogFile string `envconfig:"MESSAGE_LOG_FILE"`
	MessageLogDB   bool   `envconfig:"MESSAGE_LOG_DB" default:"true"`

	DBPool PoolConfig
}

type BridgeConfig struct {
	Port      string `envconfig:"PORT" default:"3000"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// scripted behavior for local runs: "ok", "flaky", "down"
	Mode      string        `envconfig:"MOCK_MODE" default:"ok"`
	ReadyLag  time.Duration `envconfig:"MOCK_READY_LAG" default:"2s"`
	FailEvery int           `envconfig:"MOCK_FAIL_EVERY" default:"4"`
}

type PoolConfig struct {
	MaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"4"`
	MinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"1m"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadBridge() BridgeConfig {
	var cfg BridgeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
