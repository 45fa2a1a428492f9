package train

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/m-mizutani/askdb/pkg/adapter"
	"github.com/m-mizutani/askdb/pkg/corpus"
	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/sqlcheck"
	"github.com/m-mizutani/askdb/pkg/utils/logging"
)

// UseCase feeds the corpus: individual artifacts, YAML seed files, live
// BigQuery schemas, and snapshot transfer through object storage.
type UseCase struct {
	store   *corpus.Store
	bq      adapter.BigQuery
	storage adapter.Storage
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithBigQuery enables schema introspection training
func WithBigQuery(bq adapter.BigQuery) Option {
	return func(uc *UseCase) {
		uc.bq = bq
	}
}

// WithStorage enables snapshot export and import
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

// New creates a new train UseCase instance
func New(store *corpus.Store, opts ...Option) *UseCase {
	uc := &UseCase{
		store: store,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// TrainDDL stores one table definition
func (uc *UseCase) TrainDDL(ctx context.Context, ddl string) (model.ArtifactID, error) {
	return uc.store.Add(ctx, model.KindDDL, ddl)
}

// TrainDocumentation stores one free-text note about the data
func (uc *UseCase) TrainDocumentation(ctx context.Context, text string) (model.ArtifactID, error) {
	return uc.store.Add(ctx, model.KindDocumentation, text)
}

// TrainExemplar stores one question/SQL pair. The SQL must pass the
// same read-only validation as generated queries; a corpus exemplar is
// a template for future generations and must not teach mutations.
func (uc *UseCase) TrainExemplar(ctx context.Context, question, sql string) (model.ArtifactID, error) {
	if gen := sqlcheck.ExtractAndValidate(sql, nil); !gen.Valid {
		return "", goerr.Wrap(model.ErrValidationFailed, "exemplar sql rejected",
			goerr.V("reason", gen.Reason))
	}
	return uc.store.AddExemplar(ctx, question, sql)
}

// seedFile is the YAML layout of a corpus seed file
type seedFile struct {
	DDL           []string `yaml:"ddl"`
	Documentation []string `yaml:"documentation"`
	Examples      []struct {
		Question string `yaml:"question"`
		SQL      string `yaml:"sql"`
	} `yaml:"examples"`
}

// TrainFromFile loads a YAML seed file and stores every artifact in it.
// It returns the number of stored artifacts.
func (uc *UseCase) TrainFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, goerr.Wrap(err, "failed to parse seed file", goerr.V("path", path))
	}

	var count int
	for _, ddl := range seed.DDL {
		if _, err := uc.TrainDDL(ctx, ddl); err != nil {
			return count, err
		}
		count++
	}
	for _, doc := range seed.Documentation {
		if _, err := uc.TrainDocumentation(ctx, doc); err != nil {
			return count, err
		}
		count++
	}
	for _, ex := range seed.Examples {
		if _, err := uc.TrainExemplar(ctx, ex.Question, ex.SQL); err != nil {
			return count, err
		}
		count++
	}

	logging.From(ctx).Info("trained corpus from seed file",
		"path", path, "artifacts", count)
	return count, nil
}

// TrainFromBigQuery introspects every table of a dataset and stores its
// rendered DDL, so a corpus can be bootstrapped from a live schema.
func (uc *UseCase) TrainFromBigQuery(ctx context.Context, datasetID string) (int, error) {
	if uc.bq == nil {
		return 0, goerr.New("bigquery adapter is not configured")
	}

	tables, err := uc.bq.ListTables(ctx, datasetID)
	if err != nil {
		return 0, err
	}

	var count int
	for _, table := range tables {
		ddl, err := uc.bq.TableDDL(ctx, datasetID, table)
		if err != nil {
			return count, err
		}
		if _, err := uc.TrainDDL(ctx, ddl); err != nil {
			return count, err
		}
		count++
	}

	logging.From(ctx).Info("trained corpus from dataset",
		"dataset", datasetID, "tables", count)
	return count, nil
}

// Export writes a corpus snapshot to object storage under key
func (uc *UseCase) Export(ctx context.Context, key string) (int, error) {
	if uc.storage == nil {
		return 0, goerr.New("storage adapter is not configured")
	}

	w, err := uc.storage.Put(ctx, key)
	if err != nil {
		return 0, err
	}

	count, err := uc.store.Export(ctx, w)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to finish snapshot upload", goerr.V("key", key))
	}

	return count, nil
}

// Import loads a corpus snapshot from object storage under key. Stored
// embeddings are reused as-is, so no embedding backend is needed.
func (uc *UseCase) Import(ctx context.Context, key string) (int, error) {
	if uc.storage == nil {
		return 0, goerr.New("storage adapter is not configured")
	}

	r, err := uc.storage.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = r.Close()
	}()

	return uc.store.Import(ctx, r)
}
