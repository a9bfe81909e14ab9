package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/api-connector/pkg/connector"
	"github.com/Sternrassler/api-connector/pkg/ratelimit"
	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/Sternrassler/api-connector/pkg/sink/sqlite"
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type queryFlags struct {
	sourcePath  string
	table       string
	params      []string
	auth        []string
	count       int
	redisURL    string
	userAgent   string
	sqlitePath  string
	concurrency int
	maxRetries  int
}

// queryCmd returns the command that fetches a table.
func queryCmd() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Fetch a table and print its rows",
		Long: `Fetch a table and print its rows as JSON lines.

Parameters fill the table's templates. --count sets the number of rows to
fetch across pages; without it a single page is fetched.

Examples:
  apiq query --source yelp.yaml --table businesses --param term=coffee --auth access_token=$TOKEN --count 120
  apiq query -s github.yaml -t issues --param repo=golang/go --count 500 --concurrency 4 --sqlite issues.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&f.sourcePath, "source", "s", "", "Path to the source definition (required)")
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "Table to query (required)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Template parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.auth, "auth", nil, "Credential as key=value (repeatable)")
	cmd.Flags().IntVarP(&f.count, "count", "n", 0, "Number of rows to fetch (default: one page)")
	cmd.Flags().StringVar(&f.redisURL, "redis", getEnv(envRedisURL, ""), "Redis address or URL for shared rate limit state; default from "+envRedisURL)
	cmd.Flags().StringVar(&f.userAgent, "user-agent", getEnv(envUserAgent, connector.DefaultUserAgent), "User-Agent header; default from "+envUserAgent)
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite", "", "Also write the rows to this SQLite database")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "Parallel page fetches for offset tables")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", transport.DefaultRetryConfig().MaxRetries, "Retries per request for 5xx, 429 and network errors")

	return cmd
}

func runQuery(ctx context.Context, out io.Writer, f queryFlags) error {
	if f.sourcePath == "" {
		return fmt.Errorf("--source is required")
	}
	if f.table == "" {
		return fmt.Errorf("--table is required")
	}
	if f.concurrency < 1 {
		return fmt.Errorf("--concurrency must be >= 1 (got %d)", f.concurrency)
	}

	params, err := parsePairs("param", f.params)
	if err != nil {
		return err
	}
	creds, err := parsePairs("auth", f.auth)
	if err != nil {
		return err
	}

	vars := make(map[string]any, len(params)+1)
	for k, v := range params {
		vars[k] = v
	}
	if f.count > 0 {
		vars[connector.ReturnedNumber] = f.count
	}

	source, err := spec.LoadSource(f.sourcePath)
	if err != nil {
		return err
	}
	tableSpec, ok := source.Table(f.table)
	if !ok {
		return &connector.UnknownTableError{Table: f.table, Source: source.Name()}
	}

	cfg := transport.DefaultConfig(f.userAgent)
	cfg.Retry.MaxRetries = f.maxRetries
	if f.redisURL != "" {
		redisClient, err := openRedis(ctx, f.redisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		tracker, err := ratelimit.NewTracker(redisClient, ratelimit.DefaultConfig(source.Name()), log.Logger)
		if err != nil {
			return err
		}
		cfg.RateLimiter = tracker
	}

	httpTransport, err := transport.New(cfg)
	if err != nil {
		return err
	}

	c, err := connector.New(source,
		connector.WithTransport(httpTransport),
		connector.WithCredentials(request.Credentials(creds)),
	)
	if err != nil {
		return err
	}

	result, err := c.Query(ctx, f.table, vars, connector.WithConcurrency(f.concurrency))
	if err != nil {
		return err
	}

	if err := writeRows(out, result); err != nil {
		return err
	}

	if f.sqlitePath != "" {
		db, err := sqlite.Open(f.sqlitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := sqlite.Write(ctx, db, f.table, result, tableSpec.Response.Columns)
		if err != nil {
			return err
		}
		log.Info().Str("path", f.sqlitePath).Str("table", f.table).Int("rows", n).Msg("Wrote SQLite table")
	}

	return nil
}

// writeRows prints one JSON object per row.
func writeRows(out io.Writer, t *table.Table) error {
	enc := json.NewEncoder(out)
	for _, row := range t.Rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	return nil
}

// parsePairs splits key=value flag values.
func parsePairs(flag string, pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s %q: expected key=value", flag, p)
		}
		m[k] = v
	}
	return m, nil
}

// openRedis accepts a redis:// URL or a bare host:port.
func openRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return client, nil
}
