// Package conn opens the PostgreSQL connection backing the audit recorder.
package conn

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Postgres describes one database target. DSN wins when set; otherwise the
// connection string is assembled from the discrete fields.
type Postgres struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string
}

// Open dials the database. A nil gorm config gets defaults.
func (p Postgres) Open(cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	return gorm.Open(postgres.Open(p.dsn()), cfg)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p Postgres) dsn() string {
	if p.DSN != "" {
		return p.DSN
	}

	host := p.Host
	if host == "" {
		host = defaultHost
	}
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	if p.Database != "" {
		u.Path = "/" + p.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range p.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
