package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig holds the HTTP listener settings shared by all services.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"library"`
	Password string `envconfig:"DB_PASSWORD" default:"library"`
	Name     string `envconfig:"DB_NAME" default:"library"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// CatalogClientConfig configures outbound calls to the catalog service.
// Timeout bounds every partner call; the deactivate path must not hang on it.
type CatalogClientConfig struct {
	BaseURL string        `envconfig:"CATALOG_SERVICE_URL" default:"http://localhost:8081"`
	Timeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"3s"`
}

// JWTConfig configures login token signing.
type JWTConfig struct {
	Secret          string `envconfig:"JWT_SECRET" default:"dev_secret_change_in_prod"`
	ExpirationHours int    `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
}

func (j JWTConfig) Expiration() time.Duration {
	return time.Duration(j.ExpirationHours) * time.Hour
}

// TelemetryConfig configures the OTLP trace exporter. An empty endpoint
// disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
}

// Identity is the configuration of the identity/membership service.
type Identity struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Catalog   CatalogClientConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
}

// Catalog is the configuration of the catalog/borrowing service.
type Catalog struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

// Gateway is the configuration of the API gateway.
type Gateway struct {
	Server      ServerConfig
	IdentityURL string `envconfig:"IDENTITY_SERVICE_URL" default:"http://localhost:8083"`
	CatalogURL  string `envconfig:"CATALOG_SERVICE_URL" default:"http://localhost:8081"`
}

func LoadIdentity() (*Identity, error) {
	var cfg Identity
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8083"
	}
	return &cfg, nil
}

func LoadCatalog() (*Catalog, error) {
	var cfg Catalog
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8081"
	}
	return &cfg, nil
}

func LoadGateway() (*Gateway, error) {
	var cfg Gateway
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	return &cfg, nil
}
