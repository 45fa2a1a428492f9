package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/askdb/pkg/usecase/train"
)

func trainCommand() *cli.Command {
	var (
		cfg      config
		ddl      string
		doc      string
		question string
		sql      string
		file     string
		dataset  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "ddl",
			Usage:       "Store one table definition",
			Destination: &ddl,
		},
		&cli.StringFlag{
			Name:        "doc",
			Usage:       "Store one documentation note",
			Destination: &doc,
		},
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Exemplar question (requires --sql)",
			Destination: &question,
		},
		&cli.StringFlag{
			Name:        "sql",
			Usage:       "Exemplar SQL (requires --question)",
			Destination: &sql,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "YAML seed file with ddl, documentation and examples sections",
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "dataset",
			Usage:       "BigQuery dataset to introspect table definitions from",
			Destination: &dataset,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, dbFlags(&cfg)...)

	return &cli.Command{
		Name:  "train",
		Usage: "Add artifacts to the corpus",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			if (question == "") != (sql == "") {
				return goerr.New("--question and --sql must be given together")
			}
			if ddl == "" && doc == "" && question == "" && file == "" && dataset == "" {
				return goerr.New("nothing to train: give --ddl, --doc, --question/--sql, --file or --dataset")
			}

			_, embedder, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx, embedder)
			if err != nil {
				return err
			}

			var opts []train.Option
			if dataset != "" {
				bq, err := cfg.newBigQuery(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, train.WithBigQuery(bq))
			}
			uc := train.New(store, opts...)

			var count int
			if ddl != "" {
				if _, err := uc.TrainDDL(ctx, ddl); err != nil {
					return err
				}
				count++
			}
			if doc != "" {
				if _, err := uc.TrainDocumentation(ctx, doc); err != nil {
					return err
				}
				count++
			}
			if question != "" {
				if _, err := uc.TrainExemplar(ctx, question, sql); err != nil {
					return err
				}
				count++
			}
			if file != "" {
				n, err := uc.TrainFromFile(ctx, file)
				if err != nil {
					return err
				}
				count += n
			}
			if dataset != "" {
				n, err := uc.TrainFromBigQuery(ctx, dataset)
				if err != nil {
					return err
				}
				count += n
			}

			fmt.Fprintf(c.Root().Writer, "Stored %d artifacts\n", count)
			return nil
		},
	}
}
