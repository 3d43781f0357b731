package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/adam-npc/dialogue-core/internal/agent"
	"github.com/adam-npc/dialogue-core/internal/agent/completion"
	"github.com/adam-npc/dialogue-core/internal/agent/graph"
	"github.com/adam-npc/dialogue-core/internal/agent/knowledge"
	"github.com/adam-npc/dialogue-core/internal/agent/lookup"
	"github.com/adam-npc/dialogue-core/internal/agent/memory"
	"github.com/adam-npc/dialogue-core/internal/agent/model"
	"github.com/adam-npc/dialogue-core/internal/agent/repo"
	"github.com/adam-npc/dialogue-core/internal/agent/session"
	"github.com/adam-npc/dialogue-core/internal/core"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
	pkgredis "github.com/adam-npc/dialogue-core/pkg/redis"
)

// AppConfig defines all configurable parameters for the dialogue agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Memory       model.MemoryConfig
	Response     model.ResponseModelConfig
	Persona      model.PersonaConfig
	Knowledge    model.KnowledgeConfig
	Conversation model.ConversationConfig
}

func main() {
	fmt.Println("Testing Adam dialogue core...")
	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	// ====================================================
	// Wire the dialogue components from env
	geminiSvc, err := completion.NewGeminiService(ctx, completion.GeminiConfig{
		APIKey:  envCfg.APIKey,
		BaseURL: envCfg.BaseURL,
		Model:   envCfg.Response,
	})
	if err != nil {
		log.Fatalf("Failed to create completion service: %v", err)
	}

	summarizer := memory.NewCompletionSummarizer(geminiSvc, envCfg.Memory.SummaryReserve, 10*time.Second)
	sessions := session.NewManager(func() *memory.ConversationMemory {
		return memory.New(memory.Config{
			Budget:         envCfg.Memory.TokenBudget,
			SummaryRatio:   envCfg.Memory.SummaryRatio,
			SummaryReserve: envCfg.Memory.SummaryReserve,
			FallbackChars:  envCfg.Memory.FallbackChars,
		}, memory.HeuristicEstimator{}, summarizer)
	})

	entries := knowledge.DefaultEntries()
	if envCfg.Knowledge.Entries != "" {
		entries = knowledge.ParseEntries(envCfg.Knowledge.Entries)
	}
	index := knowledge.NewIndex(entries)
	classifier := knowledge.NewHeuristicClassifier(index.Topics(), []string{envCfg.Persona.Name})
	resolver := knowledge.NewResolver(index, lookup.NewWikipediaClient(),
		time.Duration(envCfg.Knowledge.LookupTimeoutSeconds)*time.Second)

	transcripts := repo.NewRedisConversationRepository(rdb, ttl)

	runner, err := graph.BuildDialogueGraph(ctx, graph.Config{
		Sessions:      sessions,
		Classifier:    classifier,
		Resolver:      resolver,
		Completion:    geminiSvc,
		Repo:          transcripts,
		Persona:       envCfg.Persona,
		ResponseModel: envCfg.Response,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	a := agent.New(sessions, runner, transcripts)

	testTurns := []struct {
		description string
		utterance   string
	}{
		{
			description: "Initial greeting",
			utterance:   "Hello Adam, how are you?",
		},
		{
			description: "Local knowledge topic",
			utterance:   "Tell me about magic in the Northern Isles",
		},
		{
			description: "Open-ended persona question",
			utterance:   "What wisdom can you share about time?",
		},
	}

	sessionID := "test-session-123451"

	for i, test := range testTurns {
		fmt.Printf("\nTurn %d: %s\n", i+1, test.description)
		fmt.Printf("Utterance: %q\n", test.utterance)
		fmt.Println("Processing...")

		result, err := a.SubmitTurn(ctx, model.TurnInput{
			SessionID: sessionID,
			Utterance: test.utterance,
		})
		if err != nil {
			log.Fatalf("Failed to submit turn %d: %v", i+1, err)
		}

		fmt.Printf("Reply %d: %s\n", i+1, result.Reply)
		fmt.Printf("  degraded=%v knowledge=%s tokens=%d\n",
			result.Degraded, result.KnowledgeSource, result.TotalTokens)
		fmt.Println("─────────────────────────────────────────────")

		// slight delay between turns for readability
		time.Sleep(500 * time.Millisecond)
	}

	snapshot, err := a.GetContext(ctx, sessionID)
	if err != nil {
		log.Fatalf("Failed to read session context: %v", err)
	}
	fmt.Printf("\nSession window: %d messages, %d tokens, summary=%q\n",
		len(snapshot.Recent), snapshot.TotalTokens, snapshot.Summary)

	fmt.Println("All dialogue turns completed successfully!")
}
