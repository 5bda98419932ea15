package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quorum/internal/adapter/llm"
	"quorum/internal/adapter/store"
	"quorum/internal/adapter/tool"
	"quorum/internal/domain"
	"quorum/internal/infra/config"
	"quorum/internal/infra/logger"
	"quorum/internal/infra/tracer"
	"quorum/internal/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	snapshots, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	councils := usecase.NewCouncilManager(snapshots, log)
	packs := usecase.NewPackManager(snapshots, log)
	counters := usecase.NewCounterManager(snapshots, log)

	registry := tool.NewRegistry(log)
	perMinute := cfg.Tools.RatePerMinute
	registry.Register(tool.WithRateLimit(tool.NewCalculator(), perMinute))
	registry.Register(tool.WithRateLimit(tool.NewCouncilTool(councils), perMinute))
	registry.Register(tool.WithRateLimit(tool.NewPackTool(packs), perMinute))
	registry.Register(tool.WithRateLimit(tool.NewCounterTool(counters), perMinute))

	breakerTimeout, err := parseBreakerTimeout(cfg.LLM.BreakerTimeout)
	if err != nil {
		return err
	}
	var provider domain.StreamProvider = llm.NewOpenAIProvider(cfg.LLM, log)
	provider = llm.NewCircuitBreakerProvider(provider, llm.CircuitBreakerConfig{
		MaxFailures: cfg.LLM.BreakerMaxFailures,
		Timeout:     breakerTimeout,
	}, log)

	loop := usecase.NewLoop(usecase.LoopDeps{
		Provider:      provider,
		Tools:         registry,
		Logger:        log,
		Model:         cfg.LLM.Model,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxIterations: cfg.Agent.MaxIterations,
		Temperature:   cfg.Agent.Temperature,
		MaxTokens:     cfg.Agent.MaxTokens,
	})

	log.Info("quorum ready", "model", cfg.LLM.Model, "tools", registry.IDs())
	return repl(ctx, loop)
}

func parseBreakerTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: llm.breaker_timeout: %w", err)
	}
	return d, nil
}

// repl reads user turns from stdin and prints fragments as they stream.
func repl(ctx context.Context, loop *usecase.Loop) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("quorum: type a message, /reset to clear history, /quit to exit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			loop.Reset()
			fmt.Println("history cleared")
			continue
		}

		for frag := range loop.Run(ctx, input) {
			if frag.Err != nil {
				fmt.Printf("\n[error] %v\n", frag.Err)
				break
			}
			switch frag.Type {
			case domain.FragmentText:
				fmt.Print(frag.Text)
			case domain.FragmentToolResult:
				fmt.Printf("\n[tool result]\n%s\n", frag.Text)
			case domain.FragmentNotice:
				fmt.Printf("\n[%s]\n", frag.Text)
			}
		}
		fmt.Println()

		if ctx.Err() != nil {
			return nil
		}
	}
}
