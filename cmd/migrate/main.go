package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|status]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "status":
		if err := printStatus(ctx, conn); err != nil {
			log.Fatalf("Failed to read status: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			tenant_id VARCHAR(64) NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			channel_url TEXT NOT NULL DEFAULT '',
			subscriber_count BIGINT NOT NULL DEFAULT 0,
			video_count BIGINT NOT NULL DEFAULT 0,
			total_views BIGINT NOT NULL DEFAULT 0,
			published_at TIMESTAMPTZ NOT NULL,
			first_video_date TIMESTAMPTZ NOT NULL,
			latest_video JSONB,
			growth_rate INTEGER NOT NULL DEFAULT 0,
			relevance_score INTEGER NOT NULL DEFAULT 0,
			keywords TEXT[] NOT NULL DEFAULT '{}',
			status VARCHAR(20) NOT NULL DEFAULT '',
			rejection_reason TEXT NOT NULL DEFAULT '',
			status_updated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, channel_id)
		)`,

		`CREATE TABLE IF NOT EXISTS tracking_snapshots (
			tenant_id VARCHAR(64) NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			snapshot_date DATE NOT NULL,
			subscriber_count BIGINT NOT NULL,
			video_count BIGINT NOT NULL,
			total_views BIGINT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, channel_id, snapshot_date)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_channels_status ON channels(tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_growth ON channels(tenant_id, growth_rate DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_created_at ON channels(tenant_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at ON tracking_snapshots(tenant_id, channel_id, recorded_at)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS tracking_snapshots CASCADE`,
		`DROP TABLE IF EXISTS channels CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func printStatus(ctx context.Context, conn *pgx.Conn) error {
	rows, err := conn.Query(ctx, `
		SELECT c.tenant_id, COUNT(*), COUNT(*) FILTER (WHERE c.status = 'tracking'),
			(SELECT COUNT(*) FROM tracking_snapshots s WHERE s.tenant_id = c.tenant_id)
		FROM channels c
		GROUP BY c.tenant_id
		ORDER BY c.tenant_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Printf("%-20s %10s %10s %10s\n", "tenant", "channels", "tracking", "snapshots")
	for rows.Next() {
		var tenant string
		var channels, tracking, snapshots int64
		if err := rows.Scan(&tenant, &channels, &tracking, &snapshots); err != nil {
			return err
		}
		fmt.Printf("%-20s %10d %10d %10d\n", tenant, channels, tracking, snapshots)
	}
	return rows.Err()
}

func getTableName(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}
