package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/report-templates/internal/config"
	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/queue"
	"github.com/benvon/report-templates/internal/sessions"
	"github.com/spf13/cobra"
)

const checkTimeout = 10 * time.Second

// NewCheckCmd creates the check command, which verifies connectivity to the
// services the API and worker depend on.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check service dependencies",
		Long:  "Connect to PostgreSQL, Redis and (when RABBITMQ_URL is set) RabbitMQ and report their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			var failures []error
			report := func(name string, err error) {
				if err != nil {
					failures = append(failures, fmt.Errorf("%s: %w", name, err))
					_, _ = fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					return
				}
				_, _ = fmt.Fprintf(out, "✓ %s is reachable\n", name)
			}

			report("PostgreSQL", checkDatabase(cmd.Context(), cfg.DatabaseURL))
			report("Redis", checkRedis(cmd.Context(), cfg.RedisURL))
			if cfg.RabbitMQURL == "" {
				_, _ = fmt.Fprintln(out, "- RabbitMQ not configured; import history will not be recorded")
			} else {
				report("RabbitMQ", checkQueue(cmd.Context(), cfg.RabbitMQURL))
			}

			return errors.Join(failures...)
		},
	}
}

func checkDatabase(ctx context.Context, url string) error {
	db, err := database.New(url)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

func checkRedis(ctx context.Context, url string) error {
	client, err := sessions.NewRedisClient(url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

func checkQueue(ctx context.Context, url string) error {
	q, err := queue.NewRabbitMQQueue(url)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()
	return q.HealthCheck(ctx)
}
