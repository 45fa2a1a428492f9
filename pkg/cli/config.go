package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/askdb/pkg/adapter"
	"github.com/m-mizutani/askdb/pkg/compose"
	"github.com/m-mizutani/askdb/pkg/corpus"
	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/repository"
	"github.com/m-mizutani/askdb/pkg/sqlcheck"
	"github.com/m-mizutani/askdb/pkg/usecase/ask"
	"github.com/m-mizutani/askdb/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	logLevel string

	// Corpus store
	corpusBackend string
	project       string
	database      string

	// Completion and embedding backend
	llmBackend     string
	geminiProject  string
	geminiLocation string
	geminiModel    string
	openaiBaseURL  string
	openaiAPIKey   string
	openaiModel    string
	openaiEmbed    string

	// Target database
	dbBackend       string
	dbDriver        string
	dsn             string
	bigqueryProject string
	scanLimitMB     int64
	queryTimeout    time.Duration

	// Pipeline
	schemaPath  string
	policyDir   string
	tokenBudget int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ASKDB_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// corpusFlags returns flags for the corpus store backend
func corpusFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "corpus",
			Usage:       "Corpus backend (firestore, memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("ASKDB_CORPUS"),
			Destination: &cfg.corpusBackend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// llmFlags returns flags for completion and embedding backends
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "Model backend (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("ASKDB_LLM"),
			Destination: &cfg.llmBackend,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI-compatible API (e.g. a local inference server)",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "API key for the OpenAI-compatible backend",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "Model name for the OpenAI-compatible backend",
			Sources:     cli.EnvVars("OPENAI_MODEL"),
			Destination: &cfg.openaiModel,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Usage:       "Embedding model name for the OpenAI-compatible backend",
			Sources:     cli.EnvVars("OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.openaiEmbed,
		},
	}
}

// dbFlags returns flags for the target database
func dbFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Target database backend (postgres, bigquery)",
			Value:       "postgres",
			Sources:     cli.EnvVars("ASKDB_DB"),
			Destination: &cfg.dbBackend,
		},
		&cli.StringFlag{
			Name:        "db-driver",
			Usage:       "database/sql driver name",
			Value:       "pgx",
			Sources:     cli.EnvVars("ASKDB_DB_DRIVER"),
			Destination: &cfg.dbDriver,
		},
		&cli.StringFlag{
			Name:        "dsn",
			Usage:       "Connection string for the target database (use a read-only credential)",
			Sources:     cli.EnvVars("ASKDB_DSN"),
			Destination: &cfg.dsn,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID for BigQuery",
			Sources:     cli.EnvVars("BIGQUERY_PROJECT_ID"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.IntFlag{
			Name:        "scan-limit-mb",
			Usage:       "Reject BigQuery queries that would scan more than this many MB",
			Value:       1024,
			Sources:     cli.EnvVars("ASKDB_SCAN_LIMIT_MB"),
			Destination: &cfg.scanLimitMB,
		},
		&cli.DurationFlag{
			Name:        "query-timeout",
			Usage:       "Statement timeout for generated queries",
			Value:       5 * time.Second,
			Sources:     cli.EnvVars("ASKDB_QUERY_TIMEOUT"),
			Destination: &cfg.queryTimeout,
		},
	}
}

// pipelineFlags returns flags shaping prompt composition and validation
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "schema",
			Usage:       "Path to a YAML schema file for identifier checking",
			Sources:     cli.EnvVars("ASKDB_SCHEMA"),
			Destination: &cfg.schemaPath,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Directory of Rego policies applied to generated SQL",
			Sources:     cli.EnvVars("ASKDB_POLICY"),
			Destination: &cfg.policyDir,
		},
		&cli.IntFlag{
			Name:        "token-budget",
			Usage:       "Token budget for the generation prompt",
			Value:       compose.DefaultTokenBudget,
			Sources:     cli.EnvVars("ASKDB_TOKEN_BUDGET"),
			Destination: &cfg.tokenBudget,
		},
	}
}

// setupLogging installs the configured logger into the context
func (cfg *config) setupLogging(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates the configured corpus repository
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.corpusBackend {
	case "memory":
		return repository.NewMemory(), nil
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore corpus")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required for the firestore corpus")
		}
		repo, err := repository.New(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil
	default:
		return nil, goerr.New("unknown corpus backend", goerr.V("corpus", cfg.corpusBackend))
	}
}

// newLLM creates the configured completion and embedding backend. Both
// capabilities come from the same client.
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, adapter.Embedder, error) {
	switch cfg.llmBackend {
	case "gemini":
		project := cfg.geminiProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, nil, goerr.New("gemini-project is required")
		}
		var opts []adapter.GeminiOption
		if cfg.geminiModel != "" {
			opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
		}
		client, err := adapter.NewGemini(ctx, project, cfg.geminiLocation, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create gemini client")
		}
		return client, client, nil
	case "openai":
		if cfg.openaiBaseURL == "" && cfg.openaiAPIKey == "" {
			return nil, nil, goerr.New("openai-base-url or openai-api-key is required")
		}
		client, err := adapter.NewOpenAI(adapter.OpenAIConfig{
			BaseURL:        cfg.openaiBaseURL,
			APIKey:         cfg.openaiAPIKey,
			Model:          cfg.openaiModel,
			EmbeddingModel: cfg.openaiEmbed,
		})
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create openai client")
		}
		return client, client, nil
	default:
		return nil, nil, goerr.New("unknown model backend", goerr.V("llm", cfg.llmBackend))
	}
}

// newExecutor creates the configured target database executor
func (cfg *config) newExecutor(ctx context.Context) (adapter.Executor, error) {
	switch cfg.dbBackend {
	case "postgres":
		if cfg.dsn == "" {
			return nil, goerr.New("dsn is required for the postgres backend")
		}
		return adapter.OpenSQLDB(ctx, cfg.dbDriver, cfg.dsn,
			adapter.WithStatementTimeout(cfg.queryTimeout))
	case "bigquery":
		project := cfg.bigqueryProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, goerr.New("bigquery-project is required")
		}
		return adapter.NewBigQuery(ctx, project,
			adapter.WithScanLimitMB(cfg.scanLimitMB))
	default:
		return nil, goerr.New("unknown database backend", goerr.V("db", cfg.dbBackend))
	}
}

// newBigQuery creates a BigQuery adapter for schema introspection
func (cfg *config) newBigQuery(ctx context.Context) (adapter.BigQuery, error) {
	project := cfg.bigqueryProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("bigquery-project is required")
	}
	return adapter.NewBigQuery(ctx, project)
}

// newStorage creates a Storage adapter for corpus snapshots
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newStore creates the corpus store. Commands that never embed may pass
// a nil embedder.
func (cfg *config) newStore(ctx context.Context, embedder adapter.Embedder) (*corpus.Store, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}
	return corpus.New(embedder, repo), nil
}

// loadSchema loads the schema file when one is configured
func (cfg *config) loadSchema() (*model.Schema, error) {
	if cfg.schemaPath == "" {
		return nil, nil
	}
	return model.LoadSchema(cfg.schemaPath)
}

// newAsk assembles the question-answering pipeline. When execute is
// false no database connection is opened; only Generate works.
func (cfg *config) newAsk(ctx context.Context, summarize, execute bool) (*ask.UseCase, error) {
	llm, embedder, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, err
	}

	store, err := cfg.newStore(ctx, embedder)
	if err != nil {
		return nil, err
	}

	var executor adapter.Executor
	if execute {
		executor, err = cfg.newExecutor(ctx)
		if err != nil {
			return nil, err
		}
	}

	composer, err := compose.New(compose.WithTokenBudget(int(cfg.tokenBudget)))
	if err != nil {
		return nil, err
	}

	schema, err := cfg.loadSchema()
	if err != nil {
		return nil, err
	}

	opts := []ask.Option{
		ask.WithSchema(schema),
		ask.WithSummary(summarize),
	}

	if cfg.policyDir != "" {
		policy, err := sqlcheck.LoadPolicy(ctx, cfg.policyDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ask.WithPolicy(policy))
	}

	return ask.New(llm, store, composer, executor, opts...), nil
}
