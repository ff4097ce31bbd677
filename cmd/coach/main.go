// Command coach runs an interactive interview coaching session on the
// terminal: pick a problem, work through the seven stages, type "quit"
// to leave early.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coach/pkg/coach"
	"coach/pkg/config"
	"coach/pkg/llm"
	"coach/pkg/logx"
	"coach/pkg/metrics"
	"coach/pkg/module"
	"coach/pkg/persistence"
	"coach/pkg/session"
	"coach/pkg/utils"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config (optional)")
		dbPath      = flag.String("db", "coach.db", "path to the session database")
		logDir      = flag.String("logs", "logs", "directory for log files")
		problem     = flag.String("problem", "", "problem statement to coach on")
		resumeID    = flag.String("resume", "", "session ID to resume")
		provider    = flag.String("provider", "", "LLM provider: anthropic, openai, ollama (empty for built-in prompts)")
		model       = flag.String("model", "", "model override for the chosen provider")
		metricsAddr = flag.String("metrics-addr", "", "listen address for /metrics (empty disables)")
		promURL     = flag.String("prometheus-url", "", "Prometheus server to query for the session summary at exit (empty disables)")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if err := run(*configPath, *dbPath, *logDir, *problem, *resumeID, *provider, *model, *metricsAddr, *promURL, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "coach: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, logDir, problem, resumeID, provider, model, metricsAddr, promURL string, debug bool) error {
	if err := logx.Init(logDir, false); err != nil {
		return err
	}
	defer logx.Close()
	if debug {
		logx.SetDebug(true)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if model != "" {
		cfg.Model = model
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	store, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, registry)
	}

	counter, err := utils.NewTokenCounter(cfg.Model)
	if err != nil {
		logx.Warnf("token counter unavailable, using estimates: %v", err)
	}

	engine, err := coach.NewEngine(cfg, module.DefaultRegistry(client),
		coach.WithStore(store),
		coach.WithRecorder(recorder),
		coach.WithTokenCounter(counter),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, engine, problem, resumeID)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s\nProblem: %s\n\n", sess.ID, sess.ProblemText)
	fmt.Printf("[%s] Let's get started. How would you restate this problem in your own words?\n\n", sess.CurrentStage.DisplayName())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(input), "quit") {
			break
		}

		resp, err := engine.SubmitTurn(ctx, sess, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		fmt.Printf("\n[%s] %s\n\n", sess.CurrentStage.DisplayName(), resp.AssistantMessage)

		if engine.IsFinished(sess) {
			fmt.Println("Session complete. Well done!")
			printSessionSummary(promURL, sess.ID)
			return engine.EndSession(context.Background(), sess, true)
		}
	}

	fmt.Println("\nSession saved. Resume with -resume " + sess.ID)
	printSessionSummary(promURL, sess.ID)
	return engine.EndSession(context.Background(), sess, false)
}

// printSessionSummary reports the session's recorded token usage from a
// Prometheus server scraping the /metrics endpoint.
func printSessionSummary(promURL, sessionID string) {
	if promURL == "" {
		return
	}
	qs, err := metrics.NewQueryService(promURL)
	if err != nil {
		logx.Warnf("session summary unavailable: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	usage, err := qs.GetSessionMetrics(ctx, sessionID)
	if err != nil {
		logx.Warnf("session summary query failed: %v", err)
		return
	}
	fmt.Printf("Token usage: %d from you, %d from the coach, %d total.\n",
		usage.UserTokens, usage.AssistantTokens, usage.TotalTokens)
}

func openSession(ctx context.Context, engine *coach.Engine, problem, resumeID string) (*session.State, error) {
	if resumeID != "" {
		return engine.ResumeSession(ctx, resumeID)
	}
	if strings.TrimSpace(problem) == "" {
		return nil, fmt.Errorf("either -problem or -resume is required")
	}
	return engine.StartSession(ctx, problem, nil)
}

func buildClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return llm.NewAnthropicClient(key, cfg.Model), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return llm.NewOpenAIClient(key, cfg.Model), nil
	case "ollama":
		return llm.NewOllamaClient(cfg.Host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logx.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logx.Warnf("metrics listener failed: %v", err)
	}
}
