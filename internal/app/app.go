// Package app wires configuration, storage, models and pipelines into
// a running application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/buraktaskin-zmx/sprinai/db"
	"github.com/buraktaskin-zmx/sprinai/internal/config"
	"github.com/buraktaskin-zmx/sprinai/internal/docstore"
	"github.com/buraktaskin-zmx/sprinai/internal/document"
	"github.com/buraktaskin-zmx/sprinai/internal/evaluation"
	"github.com/buraktaskin-zmx/sprinai/internal/extract"
	"github.com/buraktaskin-zmx/sprinai/internal/ingest"
	"github.com/buraktaskin-zmx/sprinai/internal/knowledge"
	"github.com/buraktaskin-zmx/sprinai/internal/llm"
	"github.com/buraktaskin-zmx/sprinai/internal/log"
	"github.com/buraktaskin-zmx/sprinai/internal/retrieval"
	"github.com/buraktaskin-zmx/sprinai/internal/studygen"
)

// App aggregates the long-lived components the CLI commands operate on.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Pipeline  *ingest.Pipeline
	Cascade   *studygen.Cascade
	Evaluator *evaluation.Evaluator

	pool *pgxpool.Pool
}

// New builds the full component graph: migrations, connection pool,
// Genkit with the Google AI plugin, stores, retrieval, generation and
// evaluation. The returned cleanup closes the pool.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { pool.Close() }

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	chunkIndex := knowledge.New(knowledge.NewPGQuerier(pool), embedder, logger)
	documents := docstore.New(docstore.NewPGQuerier(pool), logger)

	masker, err := retrieval.NewMasker(cfg.MaskPatterns)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build masker: %w", err)
	}
	retriever := retrieval.New(chunkIndex, cfg.Retrieval.TopK, cfg.Retrieval.MinScore, logger)

	prompts, err := studygen.LoadPrompts()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	model := llm.New(g, logger)
	cascade := studygen.NewCascade(retriever, masker, model, studygen.Profiles{
		Primary:  cfg.Primary,
		Fallback: cfg.Fallback,
		Analyzer: cfg.Analyzer,
	}, prompts, logger)

	evaluator := evaluation.New(model, cfg.Primary, logger)

	pipeline := ingest.New(
		extract.New(),
		documents,
		chunkIndex,
		document.SplitConfig{
			ChunkTokenSize: cfg.Chunking.ChunkTokenSize,
			MaxChunks:      cfg.Chunking.MaxChunks,
		},
		logger,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pipeline:  pipeline,
		Cascade:   cascade,
		Evaluator: evaluator,
		pool:      pool,
	}, cleanup, nil
}

// newPool creates the pgx pool with pgvector types registered on every
// connection.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
