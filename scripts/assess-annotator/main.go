// assess-annotator runs the sentiment annotator over the bundled seed reviews
// and reports how often each model returns a usable classification.
//
// Usage: go run ./scripts/assess-annotator [--model name]... [--per-category n]
//
// Endpoint and keys come from the usual config.yaml / environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/config"
	"github.com/ekaya-inc/review-engine/pkg/llm"
	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/seed"
	"github.com/ekaya-inc/review-engine/pkg/services"
)

type sample struct {
	category string
	text     string
	stars    int
}

type modelResult struct {
	model     string
	total     int
	succeeded int
	failures  map[llm.ErrorType]int
	tones     map[string]int
	duration  time.Duration
}

func main() {
	cmd := &cli.Command{
		Name:  "assess-annotator",
		Usage: "Classify the seed reviews with one or more models and compare the results",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file"},
			&cli.StringSliceFlag{Name: "model", Usage: "model to assess (repeatable); defaults to annotator.model"},
			&cli.IntFlag{Name: "per-category", Value: 2, Usage: "reviews taken from each seed category"},
			&cli.DurationFlag{Name: "timeout", Value: 60 * time.Second, Usage: "timeout for each classification"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "assess-annotator: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load("assess", config.ResolvePath(c.String("config")))
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Env, "warn")
	if err != nil {
		return err
	}
	defer logger.Sync()

	fixture, err := seed.DefaultFixture()
	if err != nil {
		return err
	}
	samples := pickSamples(fixture, int(c.Int("per-category")))
	if len(samples) == 0 {
		return errors.New("seed fixture has no reviews")
	}

	models := c.StringSlice("model")
	if len(models) == 0 {
		models = []string{cfg.Annotator.Model}
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Annotator assessment: %d reviews, endpoint %s\n", len(samples), cfg.Annotator.Endpoint())
	fmt.Println(strings.Repeat("=", 80))

	allPassed := true
	for _, model := range models {
		res, err := assessModel(ctx, cfg, model, samples, c.Duration("timeout"), logger)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", model, err)
			allPassed = false
			continue
		}
		printResult(res)
		if res.succeeded < res.total {
			allPassed = false
		}
	}

	if !allPassed {
		return errors.New("some classifications failed")
	}
	fmt.Println("\nAll models classified every review.")
	return nil
}

func pickSamples(f *seed.Fixture, perCategory int) []sample {
	var out []sample
	for _, cat := range f.Categories {
		for i, r := range cat.Reviews {
			if i >= perCategory {
				break
			}
			out = append(out, sample{category: cat.Name, text: r.Text, stars: r.Stars})
		}
	}
	return out
}

func assessModel(ctx context.Context, cfg *config.Config, model string, samples []sample, timeout time.Duration, logger *zap.Logger) (*modelResult, error) {
	llmCfg := &llm.Config{
		Endpoint: cfg.Annotator.Endpoint(),
		Model:    model,
		APIKey:   cfg.Annotator.APIKey(),
	}
	var client llm.LLMClient
	var err error
	if cfg.Annotator.Provider == config.ProviderAnthropic {
		client, err = llm.NewAnthropicClient(llmCfg, logger)
	} else {
		client, err = llm.NewClient(llmCfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	// Zero breaker config: every sample should reach the model.
	annotator := services.NewSentimentAnnotator(client, services.AnnotatorConfig{
		Timeout:           timeout,
		RequestsPerSecond: cfg.Annotator.RequestsPerSecond,
	}, logger)

	res := &modelResult{
		model:    model,
		failures: make(map[llm.ErrorType]int),
		tones:    make(map[string]int),
	}
	start := time.Now()
	for _, s := range samples {
		res.total++
		got, err := annotator.Classify(ctx, s.text, s.stars)
		if err != nil {
			var llmErr *llm.Error
			if errors.As(err, &llmErr) {
				res.failures[llmErr.Type]++
			} else {
				res.failures[llm.ErrorTypeUnknown]++
			}
			fmt.Printf("  ✗ [%s, %d★] %s\n      %s\n", s.category, s.stars, logging.TruncateString(s.text, 60), logging.SanitizeError(err))
			continue
		}
		res.succeeded++
		res.tones[got.Tone]++
		fmt.Printf("  ✓ [%s, %d★] %s -> %s / %s\n", s.category, s.stars, logging.TruncateString(s.text, 60), got.Tone, got.Sentiment)
	}
	res.duration = time.Since(start)
	return res, nil
}

func printResult(res *modelResult) {
	fmt.Printf("\n%s\n", strings.Repeat("-", 80))
	status := "✓ PASS"
	if res.succeeded < res.total {
		status = "✗ FAIL"
	}
	fmt.Printf("%s %s: %d/%d classified in %s\n", status, res.model, res.succeeded, res.total, res.duration.Round(time.Millisecond))

	for _, kv := range sortedCounts(res.tones) {
		fmt.Printf("  tone %-20s %d\n", kv.key, kv.n)
	}
	for t, n := range res.failures {
		fmt.Printf("  failure %-17s %d\n", t, n)
	}
}

type count struct {
	key string
	n   int
}

func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}
