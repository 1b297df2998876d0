package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	BroadcastDriverRedis = "redis"
	BroadcastDriverMQTT  = "mqtt"
)

type (
	ServiceConfig struct {
		App                   App                   `json:"app"`
		SecretsStorage        SecretsStorage        `json:"secrets_storage"`
		PublicHTTPServer      PublicHTTPServer      `json:"public_http_server"`
		AdminHTTPServer       AdminHTTPServer       `json:"admin_http_server"`
		GRPCServer            GRPCServer            `json:"grpc_server"`
		Postgres              Postgres              `json:"postgres"`
		Cache                 Cache                 `json:"cache"`
		LocationCache         LocationCache         `json:"location_cache"`
		Queue                 Queue                 `json:"queue"`
		Consumer              Consumer              `json:"consumer"`
		Broadcast             Broadcast             `json:"broadcast"`
		Live                  Live                  `json:"live"`
		Detection             Detection             `json:"detection"`
		CircuitBreaker        CircuitBreakerConfig  `json:"circuit_breaker"`
		ThrottledRateLimiting ThrottledRateLimiting `json:"throttled_rate_limiting"`
		Idempotency           Idempotency           `json:"idempotency"`
		Logging               Logging               `json:"logging"`
		Telemetry             Telemetry             `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"svc-tracker" json:"service_name"`
		APIVersion  string      `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	SecretsStorage struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"-"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"role_id,omitempty"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"-"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"svc-tracker" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    uint          `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	PublicHTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8080" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
		RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"10s" json:"request_timeout"`
	}

	AdminHTTPServer struct {
		Enabled         bool          `envconfig:"ADMIN_HTTP_SERVER_ENABLED" default:"true" json:"enabled"`
		Host            string        `envconfig:"ADMIN_HTTP_SERVER_HOST" default:"127.0.0.1" json:"host"`
		Port            uint          `envconfig:"ADMIN_HTTP_SERVER_PORT" default:"8081" json:"port"`
		ReadTimeout     time.Duration `envconfig:"ADMIN_HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"ADMIN_HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"ADMIN_HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"ADMIN_HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	GRPCServer struct {
		Enabled         bool          `envconfig:"GRPC_SERVER_ENABLED" default:"true" json:"enabled"`
		Host            string        `envconfig:"GRPC_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"GRPC_SERVER_PORT" default:"9090" json:"port"`
		ShutdownTimeout time.Duration `envconfig:"GRPC_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
		Reflection      bool          `envconfig:"GRPC_REFLECTION_ENABLED" default:"true" json:"reflection"`
		HealthInterval  time.Duration `envconfig:"GRPC_HEALTH_INTERVAL" default:"10s" json:"health_interval"`
	}

	Postgres struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            uint          `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"gpstracker" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"-"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxConnections  int           `envconfig:"POSTGRES_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int           `envconfig:"POSTGRES_MIN_CONNECTIONS" default:"5" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
		HealthCheck     time.Duration `envconfig:"POSTGRES_HEALTH_CHECK_PERIOD" default:"30s" json:"health_check_period"`
		ApplicationName string        `envconfig:"POSTGRES_APPLICATION_NAME" default:"svc-tracker" json:"application_name"`
		AutoMigrate     bool          `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true" json:"auto_migrate"`
	}

	Cache struct {
		Address      string        `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password     string        `envconfig:"CACHE_PASSWORD" default:"" json:"-"`
		DB           uint          `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize     uint          `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns uint          `envconfig:"CACHE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout  time.Duration `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout  time.Duration `envconfig:"CACHE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries   uint          `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
	}

	LocationCache struct {
		Enabled       bool          `envconfig:"LOCATION_CACHE_ENABLED" default:"true" json:"enabled"`
		LastTTL       time.Duration `envconfig:"LOCATION_CACHE_LAST_TTL" default:"10m" json:"last_ttl"`
		PageTTL       time.Duration `envconfig:"LOCATION_CACHE_PAGE_TTL" default:"1m" json:"page_ttl"`
		SetTimeout    time.Duration `envconfig:"LOCATION_CACHE_SET_TIMEOUT" default:"2s" json:"set_timeout"`
		ScanBatchSize int64         `envconfig:"LOCATION_CACHE_SCAN_BATCH_SIZE" default:"100" json:"scan_batch_size"`
	}

	Queue struct {
		URL            string        `envconfig:"QUEUE_URL" default:"nats://nats:4222" json:"url"`
		Token          string        `envconfig:"QUEUE_TOKEN" default:"" json:"-"`
		Stream         string        `envconfig:"QUEUE_STREAM" default:"TELEMETRY" json:"stream"`
		SubjectPrefix  string        `envconfig:"QUEUE_SUBJECT_PREFIX" default:"telemetry" json:"subject_prefix"`
		Partitions     int           `envconfig:"QUEUE_PARTITIONS" default:"8" json:"partitions"`
		Replicas       int           `envconfig:"QUEUE_REPLICAS" default:"1" json:"replicas"`
		MaxAge         time.Duration `envconfig:"QUEUE_MAX_AGE" default:"168h" json:"max_age"`
		DedupWindow    time.Duration `envconfig:"QUEUE_DEDUP_WINDOW" default:"2m" json:"dedup_window"`
		PublishTimeout time.Duration `envconfig:"QUEUE_PUBLISH_TIMEOUT" default:"3s" json:"publish_timeout"`
		AckWait        time.Duration `envconfig:"QUEUE_ACK_WAIT" default:"1m" json:"ack_wait"`
		MaxDeliver     int           `envconfig:"QUEUE_MAX_DELIVER" default:"-1" json:"max_deliver"`
		FetchWait      time.Duration `envconfig:"QUEUE_FETCH_WAIT" default:"5s" json:"fetch_wait"`
		DLQStream      string        `envconfig:"QUEUE_DLQ_STREAM" default:"TELEMETRY_DLQ" json:"dlq_stream"`
		DLQSubject     string        `envconfig:"QUEUE_DLQ_SUBJECT" default:"telemetry.dlq" json:"dlq_subject"`
		ConnectTimeout time.Duration `envconfig:"QUEUE_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
	}

	Consumer struct {
		Enabled           bool          `envconfig:"CONSUMER_ENABLED" default:"true" json:"enabled"`
		ProcessingTimeout time.Duration `envconfig:"CONSUMER_PROCESSING_TIMEOUT" default:"30s" json:"processing_timeout"`
		MaxRetries        uint          `envconfig:"CONSUMER_MAX_RETRIES" default:"5" json:"max_retries"`
		Backoff           Backoff       `json:"backoff"`
	}

	Backoff struct {
		BaseDelay  time.Duration `envconfig:"CONSUMER_BACKOFF_BASE_DELAY" default:"200ms" json:"base_delay"`
		Multiplier float64       `envconfig:"CONSUMER_BACKOFF_MULTIPLIER" default:"2" json:"multiplier"`
		Jitter     float64       `envconfig:"CONSUMER_BACKOFF_JITTER" default:"0.3" json:"jitter"`
		MaxDelay   time.Duration `envconfig:"CONSUMER_BACKOFF_MAX_DELAY" default:"10s" json:"max_delay"`
	}

	Broadcast struct {
		Driver        string `envconfig:"BROADCAST_DRIVER" default:"redis" json:"driver"`
		ChannelPrefix string `envconfig:"BROADCAST_CHANNEL_PREFIX" default:"gpstracker" json:"channel_prefix"`
		BufferSize    int    `envconfig:"BROADCAST_BUFFER_SIZE" default:"64" json:"buffer_size"`
		MQTT          MQTT   `json:"mqtt"`
	}

	MQTT struct {
		Broker         string        `envconfig:"BROADCAST_MQTT_BROKER" default:"tcp://mosquitto:1883" json:"broker"`
		ClientID       string        `envconfig:"BROADCAST_MQTT_CLIENT_ID" default:"svc-tracker" json:"client_id"`
		Username       string        `envconfig:"BROADCAST_MQTT_USERNAME" default:"" json:"username,omitempty"`
		Password       string        `envconfig:"BROADCAST_MQTT_PASSWORD" default:"" json:"-"`
		QoS            byte          `envconfig:"BROADCAST_MQTT_QOS" default:"0" json:"qos"`
		ConnectTimeout time.Duration `envconfig:"BROADCAST_MQTT_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		PublishTimeout time.Duration `envconfig:"BROADCAST_MQTT_PUBLISH_TIMEOUT" default:"2s" json:"publish_timeout"`
	}

	Live struct {
		ReadBufferSize  int           `envconfig:"LIVE_READ_BUFFER_SIZE" default:"1024" json:"read_buffer_size"`
		WriteBufferSize int           `envconfig:"LIVE_WRITE_BUFFER_SIZE" default:"1024" json:"write_buffer_size"`
		WriteWait       time.Duration `envconfig:"LIVE_WRITE_WAIT" default:"10s" json:"write_wait"`
		PongWait        time.Duration `envconfig:"LIVE_PONG_WAIT" default:"60s" json:"pong_wait"`
		PingPeriod      time.Duration `envconfig:"LIVE_PING_PERIOD" default:"50s" json:"ping_period"`
		AllowedOrigins  []string      `envconfig:"LIVE_ALLOWED_ORIGINS" default:"*" json:"allowed_origins"`
	}

	Detection struct {
		Enabled      bool    `envconfig:"DETECTION_ENABLED" default:"false" json:"enabled"`
		MinLatitude  float64 `envconfig:"DETECTION_MIN_LATITUDE" default:"-90" json:"min_latitude"`
		MaxLatitude  float64 `envconfig:"DETECTION_MAX_LATITUDE" default:"90" json:"max_latitude"`
		MinLongitude float64 `envconfig:"DETECTION_MIN_LONGITUDE" default:"-180" json:"min_longitude"`
		MaxLongitude float64 `envconfig:"DETECTION_MAX_LONGITUDE" default:"180" json:"max_longitude"`
	}

	CircuitBreakerConfig struct {
		Enabled          bool          `envconfig:"QUEUE_CB_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"QUEUE_CB_MAX_REQUESTS" default:"5" json:"max_requests"`
		Interval         time.Duration `envconfig:"QUEUE_CB_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"QUEUE_CB_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"QUEUE_CB_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	ThrottledRateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"50" json:"requests_per_second"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"100" json:"burst_size"`
		EnableIPLimiting  bool     `envconfig:"RATE_LIMITING_ENABLE_IP_LIMITING" default:"true" json:"enable_ip_limiting"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/v1/health,/v1/liveness,/v1/readiness" json:"skip_paths"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Idempotency struct {
		Enabled          bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		CacheTTL         time.Duration `envconfig:"IDEMPOTENCY_CACHE_TTL" default:"24h" json:"cache_ttl"`
		LockTTL          time.Duration `envconfig:"IDEMPOTENCY_LOCK_TTL" default:"30s" json:"lock_ttl"`
		RequiredMethods  []string      `envconfig:"IDEMPOTENCY_REQUIRED_METHODS" default:"POST" json:"required_methods"`
		HeaderName       string        `envconfig:"IDEMPOTENCY_HEADER" default:"Idempotency-Key" json:"header_name"`
		ReplayedHeader   string        `envconfig:"IDEMPOTENCY_REPLAYED_HEADER" default:"Idempotent-Replayed" json:"replayed_header"`
		GracefulDegraded bool          `envconfig:"IDEMPOTENCY_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled            bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks    bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
		IncludeQueryParams bool `envconfig:"ACCESS_LOG_INCLUDE_QUERY_PARAMS" default:"true" json:"include_query_params"`
	}

	Telemetry struct {
		Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"" json:"otlp_endpoint"`

		OtelGRPCHost       string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort       string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`
		OtelProductCluster string `envconfig:"OTEL_PRODUCT_CLUSTER" json:"otel_product_cluster"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled        bool          `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
		ExportInterval time.Duration `envconfig:"METRICS_EXPORT_INTERVAL" default:"15s" json:"export_interval"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// Validate rejects settings the service cannot start with.
func (c *ServiceConfig) Validate() error {
	if c.Queue.Partitions < 1 {
		return fmt.Errorf("queue partitions must be at least 1, got %d", c.Queue.Partitions)
	}

	switch c.Broadcast.Driver {
	case BroadcastDriverRedis, BroadcastDriverMQTT:
	default:
		return fmt.Errorf("unsupported broadcast driver %q", c.Broadcast.Driver)
	}

	if c.Broadcast.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.Broadcast.MQTT.QoS)
	}

	if c.Detection.Enabled {
		if err := c.Detection.Bounds().Validate(); err != nil {
			return fmt.Errorf("detection bounds: %w", err)
		}
	}

	return nil
}

// DSN builds a postgres:// connection URL for pgx.
func (p Postgres) DSN() string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.FormatUint(uint64(p.Port), 10)),
		Path:   "/" + p.Database,
	}

	query := dsn.Query()
	query.Set("sslmode", p.SSLMode)
	dsn.RawQuery = query.Encode()

	return dsn.String()
}

func (d Detection) Bounds() model.Bounds {
	return model.Bounds{
		MinLatitude:  d.MinLatitude,
		MaxLatitude:  d.MaxLatitude,
		MinLongitude: d.MinLongitude,
		MaxLongitude: d.MaxLongitude,
	}
}
