package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/usecase/train"
)

func corpusCommand() *cli.Command {
	return &cli.Command{
		Name:  "corpus",
		Usage: "Inspect and manage the stored corpus",
		Commands: []*cli.Command{
			corpusListCommand(),
			corpusClearCommand(),
			corpusExportCommand(),
			corpusImportCommand(),
		},
	}
}

// parseKinds maps --kind values to artifact kinds; empty means all
func parseKinds(values []string) ([]model.ArtifactKind, error) {
	if len(values) == 0 {
		return model.Kinds(), nil
	}

	var kinds []model.ArtifactKind
	for _, v := range values {
		kind := model.ArtifactKind(v)
		if err := kind.Validate(); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func corpusListCommand() *cli.Command {
	var (
		cfg   config
		kinds []string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "kind",
			Aliases:     []string{"k"},
			Usage:       "Artifact kind to list (ddl, documentation, exemplar)",
			Destination: &kinds,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List stored artifacts",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			selected, err := parseKinds(kinds)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx, nil)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, kind := range selected {
				artifacts, err := store.All(ctx, kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s (%d)\n", kind, len(artifacts))
				for _, a := range artifacts {
					text := a.Text
					if len(text) > 80 {
						text = text[:77] + "..."
					}
					fmt.Fprintf(w, "  %s  %s\n", a.ID, strings.ReplaceAll(text, "\n", " "))
				}
			}
			return nil
		},
	}
}

func corpusClearCommand() *cli.Command {
	var (
		cfg   config
		kinds []string
		force bool
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "kind",
			Aliases:     []string{"k"},
			Usage:       "Artifact kind to clear (ddl, documentation, exemplar)",
			Destination: &kinds,
		},
		&cli.BoolFlag{
			Name:        "force",
			Usage:       "Skip the confirmation check",
			Destination: &force,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete stored artifacts",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			if !force {
				return goerr.New("refusing to clear the corpus without --force")
			}

			selected, err := parseKinds(kinds)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx, nil)
			if err != nil {
				return err
			}

			n, err := store.Clear(ctx, selected...)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %d artifacts\n", n)
			return nil
		},
	}
}

func corpusExportCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		key    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the snapshot",
			Sources:     cli.EnvVars("ASKDB_SNAPSHOT_BUCKET"),
			Destination: &bucket,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "key",
			Usage:       "Object key for the snapshot",
			Value:       "askdb/corpus.json",
			Sources:     cli.EnvVars("ASKDB_SNAPSHOT_KEY"),
			Destination: &key,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Write a corpus snapshot to Cloud Storage",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			store, err := cfg.newStore(ctx, nil)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx, bucket)
			if err != nil {
				return err
			}

			n, err := train.New(store, train.WithStorage(storage)).Export(ctx, key)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Exported %d artifacts to gs://%s/%s\n", n, bucket, key)
			return nil
		},
	}
}

func corpusImportCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		key    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket holding the snapshot",
			Sources:     cli.EnvVars("ASKDB_SNAPSHOT_BUCKET"),
			Destination: &bucket,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "key",
			Usage:       "Object key of the snapshot",
			Value:       "askdb/corpus.json",
			Sources:     cli.EnvVars("ASKDB_SNAPSHOT_KEY"),
			Destination: &key,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)

	return &cli.Command{
		Name:  "import",
		Usage: "Load a corpus snapshot from Cloud Storage",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			store, err := cfg.newStore(ctx, nil)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx, bucket)
			if err != nil {
				return err
			}

			n, err := train.New(store, train.WithStorage(storage)).Import(ctx, key)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Imported %d artifacts from gs://%s/%s\n", n, bucket, key)
			return nil
		},
	}
}
