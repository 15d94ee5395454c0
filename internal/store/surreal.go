package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// kvSchema defines the single key/value table the store uses.
const kvSchema = `
DEFINE TABLE IF NOT EXISTS kv SCHEMAFULL;
DEFINE FIELD IF NOT EXISTS key ON kv TYPE string;
DEFINE FIELD IF NOT EXISTS value ON kv TYPE string;
DEFINE FIELD IF NOT EXISTS updated_at ON kv TYPE datetime DEFAULT time::now();
DEFINE INDEX IF NOT EXISTS kv_key ON kv FIELDS key UNIQUE;
`

// kvRecord is the wire shape of a stored key/value pair.
type kvRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Surreal is a Store backed by a SurrealDB kv table over an auto-reconnecting
// WebSocket. It lets several machines share one chat profile, at the cost of
// needing a server; the file store stays the default.
type Surreal struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
}

// NewSurreal connects, authenticates and ensures the kv schema exists.
func NewSurreal(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*Surreal, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	// surrealcbor handles SurrealDB's custom CBOR tags.
	codec := surrealcbor.New()

	// gorillaws wants the base URL without the /rpc suffix (it adds it itself).
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if _, err := db.SignIn(ctx, surrealdb.Auth{
		Username: cfg.Username,
		Password: cfg.Password,
	}); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	if _, err := surrealdb.Query[any](ctx, db, kvSchema, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init kv schema: %w", err)
	}

	return &Surreal{conn: conn, db: db}, nil
}

// Close closes the SurrealDB connection.
func (s *Surreal) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *Surreal) Get(key string) ([]byte, error) {
	results, err := surrealdb.Query[[]kvRecord](context.Background(), s.db, `
		SELECT key, value FROM kv WHERE key = $key LIMIT 1
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return []byte((*results)[0].Result[0].Value), nil
	}
	return nil, ErrNotFound
}

func (s *Surreal) Set(key string, value []byte) error {
	_, err := surrealdb.Query[any](context.Background(), s.db, `
		UPSERT type::thing("kv", $key) SET key = $key, value = $value, updated_at = time::now()
	`, map[string]any{"key": key, "value": string(value)})
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (s *Surreal) Delete(key string) error {
	_, err := surrealdb.Query[any](context.Background(), s.db, `
		DELETE type::thing("kv", $key)
	`, map[string]any{"key": key})
	if err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

func (s *Surreal) Keys(prefix string) ([]string, error) {
	results, err := surrealdb.Query[[]kvRecord](context.Background(), s.db, `
		SELECT key, value FROM kv WHERE string::starts_with(key, $prefix)
	`, map[string]any{"prefix": prefix})
	if err != nil {
		return nil, fmt.Errorf("kv keys: %w", err)
	}

	var keys []string
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			keys = append(keys, rec.Key)
		}
	}
	return keys, nil
}
