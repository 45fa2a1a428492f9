package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/askdb/pkg/service/mcp"
	"github.com/m-mizutani/askdb/pkg/usecase/train"
)

func mcpCommand() *cli.Command {
	var (
		cfg       config
		summarize bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "summary",
			Usage:       "Summarize result rows in natural language",
			Destination: &summarize,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, dbFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the question pipeline as MCP tools over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			asker, err := cfg.newAsk(ctx, summarize, true)
			if err != nil {
				return err
			}

			_, embedder, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}
			store, err := cfg.newStore(ctx, embedder)
			if err != nil {
				return err
			}

			return mcp.New(asker, train.New(store)).Run(ctx)
		},
	}
}
