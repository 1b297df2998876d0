package config

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/require"
)

type fakeSecretsRepository struct {
	mu          sync.Mutex
	token       string
	secrets     map[string]*api.Secret
	getErr      error
	writeResult *api.Secret
	paths       []string
}

func (f *fakeSecretsRepository) SetToken(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.token = v
}

func (f *fakeSecretsRepository) GetSecrets(_ context.Context, path string) (*api.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, path)
	if f.getErr != nil {
		return nil, f.getErr
	}

	return f.secrets[path], nil
}

func (f *fakeSecretsRepository) WriteWithContext(_ context.Context, _ string, _ map[string]any) (*api.Secret, error) {
	return f.writeResult, nil
}

func TestInit(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "sandbox")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("QUEUE_PARTITIONS", "4")
	t.Setenv("BROADCAST_DRIVER", "mqtt")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")

	cfg, err := Init()
	require.NoError(t, err)

	require.Equal(t, "sandbox", cfg.App.Env.Name)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 4, cfg.Queue.Partitions)
	require.Equal(t, BroadcastDriverMQTT, cfg.Broadcast.Driver)
	require.Equal(t, "s3cret", cfg.Postgres.Password)
}

func TestInit_DefaultValues(t *testing.T) {
	cfg, err := Init()
	require.NoError(t, err)

	require.Equal(t, "svc-tracker", cfg.App.ServiceName)
	require.Equal(t, "v1", cfg.App.APIVersion)
	require.Equal(t, uint(8080), cfg.PublicHTTPServer.Port)
	require.Equal(t, "TELEMETRY", cfg.Queue.Stream)
	require.Equal(t, "telemetry.dlq", cfg.Queue.DLQSubject)
	require.Equal(t, 8, cfg.Queue.Partitions)
	require.Equal(t, uint(5), cfg.Consumer.MaxRetries)
	require.Equal(t, BroadcastDriverRedis, cfg.Broadcast.Driver)
	require.False(t, cfg.Detection.Enabled)
	require.Contains(t, cfg.ThrottledRateLimiting.SkipPaths, "/v1/health")
	require.False(t, cfg.SecretsStorage.Enabled)
}

func TestInit_RejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "no partitions", env: map[string]string{"QUEUE_PARTITIONS": "0"}},
		{name: "unknown broadcast driver", env: map[string]string{"BROADCAST_DRIVER": "kafka"}},
		{name: "invalid qos", env: map[string]string{"BROADCAST_MQTT_QOS": "3"}},
		{
			name: "inverted detection bounds",
			env: map[string]string{
				"DETECTION_ENABLED":      "true",
				"DETECTION_MIN_LATITUDE": "50",
				"DETECTION_MAX_LATITUDE": "40",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			_, err := Init()
			require.Error(t, err)
		})
	}
}

func TestGetEnvironment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		env      string
		expected int
	}{
		{name: "production", env: "production", expected: Production},
		{name: "prod shorthand", env: "prod", expected: Production},
		{name: "staging", env: "staging", expected: Staging},
		{name: "stg shorthand", env: "stg", expected: Staging},
		{name: "sandbox", env: "sandbox", expected: Sandbox},
		{name: "sbx shorthand", env: "sbx", expected: Sandbox},
		{name: "development default", env: "development", expected: Development},
		{name: "unknown defaults to development", env: "unknown", expected: Development},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := &ServiceConfig{App: App{Env: Environment{Name: tc.env}}}

			require.Equal(t, tc.expected, cfg.GetEnvironment())
			require.Equal(t, tc.expected == Production, cfg.IsProduction())
		})
	}
}

const secondsForTest = 5 * time.Second

func TestLoader_Load(t *testing.T) {
	cfg := &ServiceConfig{
		SecretsStorage: SecretsStorage{
			Enabled:    true,
			AuthMethod: "token",
			Token:      "root",
			MountPath:  "svc-tracker",
			Timeout:    secondsForTest,
		},
	}

	repo := &fakeSecretsRepository{
		secrets: map[string]*api.Secret{
			"apps/data/svc-tracker": {
				Data: map[string]any{
					"data": map[string]any{
						"POSTGRES_PASSWORD":       "pg-pass",
						"CACHE_PASSWORD":          "cache-pass",
						"QUEUE_TOKEN":             "nats-token",
						"BROADCAST_MQTT_PASSWORD": "mqtt-pass",
					},
					"metadata": map[string]any{"current_version": float64(3)},
				},
			},
		},
	}

	for _, key := range []string{"POSTGRES_PASSWORD", "CACHE_PASSWORD", "QUEUE_TOKEN", "BROADCAST_MQTT_PASSWORD"} {
		t.Setenv(key, "")
	}

	loader := NewLoader(cfg, repo, 0)

	version, err := loader.Load(t.Context(), repo, cfg)
	require.NoError(t, err)
	require.Equal(t, uint(3), version)
	require.Equal(t, "root", repo.token)
	require.Equal(t, "pg-pass", cfg.Postgres.Password)
	require.Equal(t, "cache-pass", cfg.Cache.Password)
	require.Equal(t, "nats-token", cfg.Queue.Token)
	require.Equal(t, "mqtt-pass", cfg.Broadcast.MQTT.Password)
}

func TestLoader_LoadFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		storage SecretsStorage
		repo    *fakeSecretsRepository
	}{
		{
			name:    "storage disabled",
			storage: SecretsStorage{Enabled: false},
			repo:    &fakeSecretsRepository{},
		},
		{
			name:    "missing token",
			storage: SecretsStorage{Enabled: true, AuthMethod: "token"},
			repo:    &fakeSecretsRepository{},
		},
		{
			name:    "approle without credentials",
			storage: SecretsStorage{Enabled: true, AuthMethod: "approle"},
			repo:    &fakeSecretsRepository{},
		},
		{
			name:    "unsupported method",
			storage: SecretsStorage{Enabled: true, AuthMethod: "kerberos"},
			repo:    &fakeSecretsRepository{},
		},
		{
			name:    "vault unreachable",
			storage: SecretsStorage{Enabled: true, AuthMethod: "token", Token: "t", MountPath: "svc-tracker", Timeout: secondsForTest},
			repo:    &fakeSecretsRepository{getErr: errors.New("connection refused")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := &ServiceConfig{SecretsStorage: tc.storage}

			_, err := NewLoader(cfg, tc.repo, 0).Load(t.Context(), tc.repo, cfg)
			require.Error(t, err)
		})
	}
}

func TestLoader_ApproleLogin(t *testing.T) {
	t.Parallel()

	repo := &fakeSecretsRepository{
		writeResult: &api.Secret{Auth: &api.SecretAuth{ClientToken: "issued"}},
	}

	loader := NewLoader(&ServiceConfig{}, repo, 0)

	err := loader.authenticateVault(t.Context(), repo, SecretsStorage{AuthMethod: "approle", RoleID: "r", SecretID: "s"})
	require.NoError(t, err)
	require.Equal(t, "issued", repo.token)
}

func TestPostgres_DSN(t *testing.T) {
	t.Parallel()

	pg := Postgres{Host: "db", Port: 5432, Database: "gpstracker", Username: "tracker", Password: "p@ss word", SSLMode: "disable"}

	require.Equal(t, "postgres://tracker:p%40ss%20word@db:5432/gpstracker?sslmode=disable", pg.DSN())
}
