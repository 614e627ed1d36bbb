package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"wechat-bridge/handler"
	"wechat-bridge/internal/cache"
	"wechat-bridge/internal/config"
	"wechat-bridge/internal/integrations/openai"
	"wechat-bridge/internal/integrations/paramstore"
	"wechat-bridge/internal/repository"
	"wechat-bridge/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Logging ----
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// ---- Configuration (read only here) ----
	_ = godotenv.Load()
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create paramstore client", "err", err)
		os.Exit(1)
	}
	ledger, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		slog.Error("failed to create ledger client", "err", err)
		os.Exit(1)
	}
	systemPrompt, err := params.GetParameter(ctx, cfg.ParamPrefix+"/system-prompt")
	if err != nil {
		slog.Warn("no system prompt configured, continuing without one", "err", err)
		systemPrompt = ""
	}
	llm, err := openai.New(openai.Config{
		Model:        cfg.OpenAIModel,
		ParamGetter:  params,
		ParamPrefix:  cfg.ParamPrefix,
		SystemPrompt: systemPrompt,
		BaseURL:      cfg.OpenAIBaseURL,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		slog.Error("failed to create upstream client", "model", cfg.OpenAIModel, "err", err)
		os.Exit(1)
	}

	// ---- Dedup cache ----
	dedup := cache.New()
	go dedup.Sweep(cfg.DedupTTL())

	// ---- Pipeline and handler ----
	service, err := usecase.NewService(dedup, ledger, llm, cfg.DedupTTL(), cfg.HistoryLimit)
	if err != nil {
		slog.Error("failed to create pipeline", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(service, params, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
