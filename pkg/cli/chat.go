package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/askdb/pkg/usecase/ask"
	"github.com/m-mizutani/askdb/pkg/usecase/train"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		summarize bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "summary",
			Aliases:     []string{"s"},
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
		Name:  "chat",
		Usage: "Interactive question session over the target database",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			uc, err := cfg.newAsk(ctx, summarize, true)
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
			trainer := train.New(store)

			rl, err := readline.New("askdb> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			session := &chatSession{
				uc:      uc,
				trainer: trainer,
				out:     c.Root().Writer,
			}
			return session.run(ctx, rl)
		},
	}
}

// chatSession keeps the last answered question so a good answer can be
// promoted to an exemplar with /save
type chatSession struct {
	uc      *ask.UseCase
	trainer *train.UseCase
	out     io.Writer

	last *ask.Answer
}

func (s *chatSession) run(ctx context.Context, rl *readline.Instance) error {
	fmt.Fprintln(s.out, "Ask a question, or /help for commands.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := s.handleCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		s.answer(ctx, input)
	}
}

func (s *chatSession) answer(ctx context.Context, question string) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr))
	sp.Suffix = " thinking..."
	sp.Start()
	answer, err := s.uc.Ask(ctx, question)
	sp.Stop()

	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", err.Error())
		return
	}

	if err := answer.Write(s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", err.Error())
		return
	}
	s.last = answer
}

func (s *chatSession) handleCommand(ctx context.Context, input string) bool {
	cmd, rest, _ := strings.Cut(input, " ")

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(s.out, "/save        store the last question and SQL as an exemplar")
		fmt.Fprintln(s.out, "/sql         show the SQL of the last answer")
		fmt.Fprintln(s.out, "/doc <text>  store a documentation note")
		fmt.Fprintln(s.out, "/quit        leave the session")

	case "/sql":
		if s.last == nil || s.last.Generated == nil {
			fmt.Fprintln(s.out, "Nothing answered yet.")
			break
		}
		fmt.Fprintln(s.out, s.last.Generated.SQL)

	case "/save":
		if s.last == nil || s.last.Generated == nil || !s.last.Generated.Valid {
			fmt.Fprintln(s.out, "No valid answer to save.")
			break
		}
		if _, err := s.trainer.TrainExemplar(ctx, s.last.Question, s.last.Generated.SQL); err != nil {
			fmt.Fprintf(s.out, "Error: %s\n", err.Error())
			break
		}
		fmt.Fprintln(s.out, "Saved as exemplar.")

	case "/doc":
		if rest == "" {
			fmt.Fprintln(s.out, "Usage: /doc <text>")
			break
		}
		if _, err := s.trainer.TrainDocumentation(ctx, rest); err != nil {
			fmt.Fprintf(s.out, "Error: %s\n", err.Error())
			break
		}
		fmt.Fprintln(s.out, "Saved documentation note.")

	default:
		fmt.Fprintf(s.out, "Unknown command %s, try /help\n", cmd)
	}

	return false
}
