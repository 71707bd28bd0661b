// Command grader grades or rewrites every file matching a glob and prints
// one JSON result per file.
//
//	go run ./cmd/grader -mode grade -provider anthropic \
//	    -assignment prompt.md -instructions rubric.md 'submissions/**/*.{txt,md,pdf}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"

	"github.com/Protocol-Lattice/go-grader/src/app"
	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/extract"
	"github.com/Protocol-Lattice/go-grader/src/grader"
	"github.com/Protocol-Lattice/go-grader/src/logging"
)

var (
	flagConfig       = flag.String("config", "", "Path to a config file")
	flagMode         = flag.String("mode", "grade", "Job mode: grade|rewrite|exemplar")
	flagProvider     = flag.String("provider", "openai", "LLM provider: openai|anthropic|perplexity|deepseek|gemini|ollama|dummy")
	flagModel        = flag.String("model", "", "Model override for the requested provider")
	flagTemperature  = flag.Float64("temperature", 0.2, "Sampling temperature")
	flagAssignment   = flag.String("assignment", "", "File holding the assignment prompt or style sample")
	flagInstructions = flag.String("instructions", "", "File holding the grading or rewrite instructions")
	flagMaxScore     = flag.Float64("max-score", 0, "Declared maximum score of the assignment")
	flagTimeout      = flag.Duration("timeout", 30*time.Minute, "Overall timeout")
)

type fileResult struct {
	File   string              `json:"file"`
	Result *grader.FinalResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: grader [flags] <glob> [<glob>...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	mode, err := grader.ParseMode(*flagMode)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	assignment, err := readOptional(*flagAssignment)
	if err != nil {
		log.Fatalf("read assignment: %v", err)
	}
	instructions, err := readOptional(*flagInstructions)
	if err != nil {
		log.Fatalf("read instructions: %v", err)
	}

	files, err := expand(flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if len(files) == 0 {
		log.Fatal("no files matched")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	a := app.New(cfg, logger)
	extractor := extract.NewService()
	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			logger.Warn("stopping early", "error", ctx.Err(), "remaining", path)
			failed++
			break
		}
		out := fileResult{File: path}
		res, err := process(ctx, a.Coordinator, extractor, path, grader.Job{
			Assignment:   assignment,
			Instructions: instructions,
			Provider:     *flagProvider,
			Model:        *flagModel,
			Temperature:  float32(*flagTemperature),
			Mode:         mode,
			MaxScore:     *flagMaxScore,
		})
		if err != nil {
			out.Error = err.Error()
			failed++
		} else {
			out.Result = &res
		}
		if err := enc.Encode(out); err != nil {
			log.Fatal(err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func process(ctx context.Context, c *grader.Coordinator, ex *extract.Service, path string, job grader.Job) (grader.FinalResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return grader.FinalResult{}, err
	}
	defer f.Close()
	doc, err := ex.Read(filepath.Base(path), "", f)
	if err != nil {
		return grader.FinalResult{}, err
	}
	job.Target = doc.Text
	return c.Run(ctx, job)
}

// expand resolves doublestar globs into a de-duplicated file list.
func expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		matches, err := doublestar.Glob(os.DirFS(base), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			p := filepath.Join(base, filepath.FromSlash(m))
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}
	return files, nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
