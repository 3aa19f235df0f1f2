package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/solarbill-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/solarbill-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/llm"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// llmtest sends one lead turn through the configured provider chain so
// credentials and model ids can be checked before a deploy.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client, closers := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	if client == nil {
		fmt.Println("No LLM provider configured (set BEDROCK_MODEL_ID or GEMINI_API_KEY)")
		os.Exit(1)
	}

	req := llm.Request{
		System: []string{
			"Você é um consultor de energia solar. Responda em português do Brasil, em no máximo duas frases.",
		},
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Oi, moro em Belo Horizonte e minha conta de luz vem uns 450 reais."},
			{Role: llm.RoleAssistant, Content: "Ótimo! Pode me mandar uma foto da conta para eu calcular sua economia?"},
			{Role: llm.RoleUser, Content: "Mando sim, mas quanto custa mais ou menos?"},
		},
		MaxTokens:   200,
		Temperature: 0.4,
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("LLM provider check")
	fmt.Println(strings.Repeat("=", 60))

	start := time.Now()
	resp, err := client.Complete(ctx, req)
	if err != nil {
		fmt.Printf("FAIL after %v: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}
	fmt.Printf("OK via %s (%v)\n", resp.Provider, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  %s\n", resp.Text)
	fmt.Printf("  tokens: in=%d out=%d stop=%s\n", resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.StopReason)
}
