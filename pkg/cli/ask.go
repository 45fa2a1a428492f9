package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		summarize bool
		showSQL   bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "summary",
			Aliases:     []string{"s"},
			Usage:       "Summarize the result rows in natural language",
			Destination: &summarize,
		},
		&cli.BoolFlag{
			Name:        "sql-only",
			Usage:       "Print the generated SQL without executing it",
			Destination: &showSQL,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, corpusFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, dbFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer one question and print the result",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("a question is required")
			}

			uc, err := cfg.newAsk(ctx, summarize, !showSQL)
			if err != nil {
				return err
			}

			if showSQL {
				answer, err := uc.Generate(ctx, question)
				if err != nil {
					return err
				}
				return answer.Write(c.Root().Writer)
			}

			answer, err := uc.Ask(ctx, question)
			if err != nil {
				return err
			}

			return answer.Write(c.Root().Writer)
		},
	}
}
