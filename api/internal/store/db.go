// Package store persists solved-problem history and terminal task
// snapshots in Postgres through the pgx database/sql driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

var ErrNotFound = sql.ErrNoRows

// Open connects, tunes the pool and pings.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

const schema = `
create table if not exists solve_history (
  id            text primary key,
  created_at    timestamptz not null default now(),
  image_hash    text not null default '',
  extracted_text text not null default '',
  problem_type  text not null,
  final_answer  text not null,
  provider      text not null,
  verified      boolean not null default false,
  problem_json  jsonb not null,
  solution_json jsonb not null,
  artifact_json jsonb not null
);
create index if not exists solve_history_created_idx on solve_history (created_at desc);
create index if not exists solve_history_hash_idx on solve_history (image_hash);

create table if not exists task_snapshots (
  id          text primary key,
  status      text not null,
  progress    int not null,
  message     text not null default '',
  error       text not null default '',
  result_json jsonb,
  created_at  timestamptz not null,
  updated_at  timestamptz not null
);`

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ResolveDSN prefers DATABASE_URL and otherwise builds a DSN from the
// POSTGRES_* and PG* variables. It returns "" when nothing is configured.
func ResolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	if strings.TrimSpace(os.Getenv("POSTGRES_PASSWORD")) == "" && strings.TrimSpace(os.Getenv("PGHOST")) == "" {
		return ""
	}
	user := getenvDefault("POSTGRES_USER", "mathcast")
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getenvDefault("PGHOST", "db")
	port := getenvDefault("PGPORT", "5432")
	db := getenvDefault("POSTGRES_DB", "mathcast")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// SafeDSNSummary describes the DSN without the password, for logs.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
