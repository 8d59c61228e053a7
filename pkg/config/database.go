package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// DBConfig takes either a full DSN or the discrete parts it is built from.
type DBConfig struct {
	DSN string `envconfig:"FARMLABOR_DB_DSN"`

	Host     string `envconfig:"FARMLABOR_DB_HOST"`
	Port     int    `envconfig:"FARMLABOR_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMLABOR_DB_USER"`
	Password string `envconfig:"FARMLABOR_DB_PASSWORD"`
	Name     string `envconfig:"FARMLABOR_DB_NAME"`
	SSLMode  string `envconfig:"FARMLABOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMLABOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMLABOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMLABOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMLABOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FARMLABOR_DB_SLOW_QUERY" default:"500ms"`
}

// resolveDSN fills DSN from the parts when it is unset, then checks that pgx
// can parse the result.
func (db *DBConfig) resolveDSN() error {
	if db.DSN == "" {
		missing := missingDBParts(db)
		if len(missing) > 0 {
			return fmt.Errorf("%s or all of %v required", EnvDBDSN, missing)
		}
		db.DSN = db.buildDSN()
	}
	if _, err := pgx.ParseConfig(db.DSN); err != nil {
		return fmt.Errorf("%s: %w", EnvDBDSN, err)
	}
	return nil
}

func missingDBParts(db *DBConfig) []string {
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	slices.Sort(missing)
	return missing
}

func (db *DBConfig) buildDSN() string {
	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String()
}
