// Command example demonstrates the asynchronous prompt flow: several
// prompts are submitted at once, then their futures are awaited.
//
// Set ALLM_<PROVIDER>_API_KEY environment variables (or a .env file)
// for the providers you want to exercise.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/backend"
	"github.com/allmhq/allm/config"
)

func main() {
	godotenv.Load()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	specs := config.APIKeysFromEnv()
	if len(specs) == 0 {
		fmt.Fprintln(os.Stderr, "no ALLM_<PROVIDER>_API_KEY variables set")
		os.Exit(1)
	}

	b := backend.New(backend.Config{Logger: log})

	ack, err := b.SetAPIKeys(specs)
	if err != nil {
		log.Fatal("set keys", zap.Error(err))
	}
	if _, err := ack.Await(context.Background()); err != nil {
		log.Fatal("set keys", zap.Error(err))
	}

	// Prefer Mistral, fall back to whatever else has a key.
	prefs := []allm.Candidate{{Provider: allm.DefaultProvider, Model: allm.DefaultModel}}
	for _, s := range specs {
		if s.Provider == allm.DefaultProvider {
			continue
		}
		prefs = append(prefs, allm.Candidate{Provider: s.Provider, Model: defaultModelFor(s.Provider)})
	}
	if ack, err := b.SetModelFallbackPreference(prefs); err == nil {
		ack.Await(context.Background())
	}

	prompts := []string{
		"Say hello in 3 different languages, one per line.",
		"Name the planets of the solar system.",
		"What is the capital of Australia?",
	}

	// Submit everything first; nothing blocks until Await.
	futures := make([]*allm.Promise[string], len(prompts))
	for i, p := range prompts {
		f, err := b.SendPrompt(p, "")
		if err != nil {
			log.Fatal("send prompt", zap.Error(err))
		}
		futures[i] = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for i, f := range futures {
		fmt.Printf("=== %s ===\n", prompts[i])
		result, err := f.Await(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			continue
		}
		fmt.Println(result)
		fmt.Println()
	}

	if _, err := b.Shutdown().Await(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}

func defaultModelFor(p allm.Provider) string {
	switch p {
	case allm.ProviderOpenAI:
		return "gpt-4o-mini"
	case allm.ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case allm.ProviderGoogle:
		return "gemini-2.0-flash"
	default:
		return allm.DefaultModel
	}
}
