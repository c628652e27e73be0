package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/logger"
)

// Neo4jConfig holds the connection settings of the graph mirror
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// ConfigFrom extracts the Neo4j settings from the runtime configuration
func ConfigFrom(cfg *config.Config) Neo4jConfig {
	return Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUsername,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}
}

// Neo4jClient wraps a driver bound to one database
type Neo4jClient struct {
	log    *logger.Logger
	driver neo4j.DriverWithContext
	config Neo4jConfig
}

// NewNeo4jClient connects and makes sure the skill constraints exist
func NewNeo4jClient(ctx context.Context, log *logger.Logger, config Neo4jConfig) (*Neo4jClient, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("missing neo4j uri")
	}
	if log == nil {
		log = logger.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	client := &Neo4jClient{
		log:    log.With("service", "Neo4jClient"),
		driver: driver,
		config: config,
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	if err := client.createConstraints(ctx); err != nil {
		client.log.Warn("failed to create constraints", "error", err)
	}
	return client, nil
}

// Close closes the driver
func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Neo4jClient) createConstraints(ctx context.Context) error {
	_, err := c.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, "CREATE CONSTRAINT skill_id_unique IF NOT EXISTS FOR (s:Skill) REQUIRE s.id IS UNIQUE", nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to create unique constraint: %w", err)
	}
	return nil
}

// ExecuteWrite runs work in a managed write transaction
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (interface{}, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	return session.ExecuteWrite(ctx, work)
}

// ExecuteRead runs work in a managed read transaction
func (c *Neo4jClient) ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork) (interface{}, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	return session.ExecuteRead(ctx, work)
}
