// Package graph wraps the Neo4j driver for the temporal graph store.
// It owns connection lifecycle and schema bootstrap; the bitemporal
// upsert/diff logic itself lives in internal/store.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config describes how to reach the property-graph server.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
}

// Client is a thin, logged wrapper around a Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewClient connects to Neo4j, verifies connectivity, and bootstraps the schema.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graph: URI is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("graph: password is required")
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to create driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: failed to connect: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	c := &Client{driver: driver, database: database, logger: logger}
	if err := c.bootstrapSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: failed to bootstrap schema: %w", err)
	}

	logger.Info("graph client connected",
		zap.String("uri", cfg.URI),
		zap.String("database", database))

	return c, nil
}

// Close releases the underlying driver's connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// HealthCheck reports whether the property graph is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Database returns the configured database name, for callers building their own queries.
func (c *Client) Database() string {
	return c.database
}

// bootstrapSchema creates a unique constraint on Entity.id, and indexes
// on edge source_url/valid_to for fast staleness scans.
func (c *Client) bootstrapSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE INDEX edge_source_url IF NOT EXISTS FOR ()-[r:RELATES]-() ON (r.source_url)",
		"CREATE INDEX edge_valid_to IF NOT EXISTS FOR ()-[r:RELATES]-() ON (r.valid_to)",
	}

	for _, stmt := range statements {
		_, err := neo4j.ExecuteQuery(ctx, c.driver, stmt, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(c.database))
		if err != nil {
			c.logger.Warn("schema statement failed", zap.String("statement", stmt), zap.Error(err))
		}
	}

	return nil
}

// run executes a single-statement write against the configured database.
func (c *Client) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
}

// runRead executes a single-statement read, routed to followers where supported.
func (c *Client) runRead(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
}
