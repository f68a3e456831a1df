package sqlcat

import "fmt"

// Config holds SQL gateway connection configuration.
type Config struct {
	Driver           string
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	SSLMode          string
	ConnectionString string

	// MaxOpenConns bounds the pool; the coordinator must not run more
	// concurrent extraction activities than this.
	MaxOpenConns int
}

// ParseConfig extracts configuration from a map.
func ParseConfig(m map[string]any) *Config {
	cfg := &Config{
		Driver:       getString(m, "driver", "postgres"),
		Host:         getString(m, "host", "localhost"),
		Port:         getInt(m, "port", 5432),
		Database:     getString(m, "database", ""),
		User:         getString(m, "user", ""),
		Password:     getString(m, "password", ""),
		SSLMode:      getString(m, "ssl_mode", "disable"),
		MaxOpenConns: getInt(m, "max_open_conns", 10),
	}

	if connStr := getString(m, "connection_string", ""); connStr != "" {
		cfg.ConnectionString = connStr
	} else {
		cfg.ConnectionString = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	return cfg
}

func getString(m map[string]any, key, defaultVal string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return defaultVal
}

func getInt(m map[string]any, key string, defaultVal int) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	if v, ok := m[key].(int); ok {
		return v
	}
	return defaultVal
}
