// Command quorum runs one consensus round over the configured bots:
// it fans a question out, lets the bots score each other, runs the
// clarification round, and prints the winning answer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ahrav/go-quorum/infrastructure/middleware"
	"github.com/ahrav/go-quorum/internal/application"
)

func main() {
	var (
		configPath = flag.String("config", "quorum.yaml", "Path to the bot configuration file")
		timeout    = flag.Duration("timeout", 5*time.Minute, "Overall deadline for the run")
		asJSON     = flag.Bool("json", false, "Print the full consensus as JSON instead of just the answer")
	)
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: quorum [-config quorum.yaml] [-json] <question>")
		os.Exit(2)
	}

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metrics := middleware.NewPrometheusMetrics()
	bots, err := application.BuildBotSet(cfg, metrics)
	if err != nil {
		log.Fatalf("Failed to build bot clients: %v", err)
	}

	engine, err := application.NewEngine(cfg, bots, metrics)
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}
	if err := engine.Validate(); err != nil {
		log.Fatalf("Engine validation failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	consensus, err := engine.Run(ctx, question)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	if *asJSON {
		out, err := json.MarshalIndent(consensus, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode consensus: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println(consensus.Answer.Content)
	fmt.Fprintf(os.Stderr, "winner=%s score=%.2f calls=%d tokens=%d\n",
		consensus.Winner, consensus.AggregateScore, consensus.Usage.Calls, consensus.Usage.Tokens)
}
