// Command tutorboard runs the AI tutoring service: a two-stage LLM
// pipeline that answers student questions and drives a shared
// whiteboard, exposed over an HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tutorboard/pkg/checkpoint"
	"tutorboard/pkg/config"
	"tutorboard/pkg/httpapi"
	"tutorboard/pkg/llm"
	"tutorboard/pkg/llm/anthropic"
	"tutorboard/pkg/llm/google"
	"tutorboard/pkg/llm/ollama"
	"tutorboard/pkg/llm/openai"
	"tutorboard/pkg/logx"
	"tutorboard/pkg/metrics"
	"tutorboard/pkg/tutor"
	"tutorboard/pkg/version"
)

func main() {
	var (
		configPath  string
		runSetup    bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.BoolVar(&runSetup, "setup", false, "Run interactive setup (API keys, config)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("tutorboard %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	if runSetup {
		if err := setup(configPath); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	if err := run(configPath); err != nil {
		log.Fatalf("tutorboard: %v", err)
	}
}

func run(configPath string) error {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := loadSecrets(); err != nil {
		return err
	}

	store, err := checkpoint.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recorder := metrics.NewRecorder()
	factory := llm.NewFactory(providerConstructors(cfg))

	explainStage, err := buildStage(factory, cfg.Stages.Tutor)
	if err != nil {
		return fmt.Errorf("tutor stage: %w", err)
	}
	illustrateStage, err := buildStage(factory, cfg.Stages.Illustrator)
	if err != nil {
		return fmt.Errorf("illustrator stage: %w", err)
	}

	pipeline := tutor.NewPipeline(explainStage, illustrateStage, store, recorder)
	server := httpapi.NewServer(pipeline, store, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartServer(ctx, "", cfg.Server.Port); err != nil {
		return err
	}

	logger.Info("tutorboard %s ready (tutor: %s/%s, illustrator: %s/%s)",
		version.Version,
		cfg.Stages.Tutor.Provider, cfg.Stages.Tutor.Model,
		cfg.Stages.Illustrator.Provider, cfg.Stages.Illustrator.Model)

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// providerConstructors wires each provider name to its client package.
// The factory stays decoupled from the provider packages so stages can
// be mocked in tests.
func providerConstructors(cfg config.Config) map[string]llm.Constructor {
	return map[string]llm.Constructor{
		llm.ProviderAnthropic: func(spec llm.ClientSpec) (llm.Client, error) {
			return anthropic.NewClient(spec.APIKey, spec.Model), nil
		},
		llm.ProviderOpenAI: func(spec llm.ClientSpec) (llm.Client, error) {
			return openai.NewClient(spec.APIKey, spec.Model), nil
		},
		llm.ProviderOllama: func(spec llm.ClientSpec) (llm.Client, error) {
			host := spec.OllamaHost
			if host == "" {
				host = cfg.Ollama.Host
			}
			return ollama.NewClient(host, spec.Model), nil
		},
		llm.ProviderGoogle: func(spec llm.ClientSpec) (llm.Client, error) {
			return google.NewClient(spec.APIKey, spec.Model), nil
		},
	}
}

func buildStage(factory *llm.Factory, stageCfg config.StageConfig) (tutor.Stage, error) {
	apiKey, err := stageCfg.APIKey()
	if err != nil {
		return tutor.Stage{}, err
	}

	client, err := factory.CreateClient(llm.ClientSpec{
		Provider: stageCfg.Provider,
		Model:    stageCfg.Model,
		APIKey:   apiKey,
	})
	if err != nil {
		return tutor.Stage{}, err
	}

	return tutor.Stage{
		Client:      client,
		MaxTokens:   stageCfg.MaxTokens,
		Temperature: stageCfg.Temperature,
	}, nil
}
