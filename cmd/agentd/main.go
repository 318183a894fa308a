package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/rs/zerolog/log"

	"manifold/internal/agent"
	"manifold/internal/agent/prompts"
	"manifold/internal/auth"
	"manifold/internal/config"
	"manifold/internal/conversation"
	llmpkg "manifold/internal/llm"
	"manifold/internal/llm/providers"
	"manifold/internal/objectstore"
	"manifold/internal/observability"
	"manifold/internal/persistence/databases"
	"manifold/internal/sandbox"
	"manifold/internal/tools"
	"manifold/internal/tools/artifact"
	"manifold/internal/tools/cli"
	"manifold/internal/tools/codeexec"
	"manifold/internal/tools/db"
	"manifold/internal/tools/filetool"
	"manifold/internal/tools/imagesview"
	"manifold/internal/tools/kafka"
	"manifold/internal/tools/plan"
	"manifold/internal/tools/sqlquery"
	"manifold/internal/tools/tts"
	"manifold/internal/tools/web"
	"manifold/internal/validation"
)

func main() {
	// Load environment from .env (or fallback to example.env) so local
	// development can run without exporting variables manually. Do this
	// before initializing the logger so LOG_PATH/LOG_LEVEL are respected.
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	logPath, logLevel := strings.TrimSpace(os.Getenv("LOG_PATH")), strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logPath == "" {
		logPath = "sio.log"
	}
	if logLevel == "" {
		logLevel = "trace"
	}
	observability.InitLogger(logPath, logLevel)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	shutdown, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		// don't abort startup for observability failures; log and continue
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdown = nil
	}
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	httpClient := observability.NewHTTPClient(nil)
	if len(cfg.OpenAI.ExtraHeaders) > 0 {
		httpClient = observability.WithHeaders(httpClient, cfg.OpenAI.ExtraHeaders)
	}
	llmpkg.ConfigureLogging(cfg.LogPayloads, cfg.OutputTruncateByte)

	provider, err := providers.Build(cfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm provider")
	}

	convStore, err := conversation.NewFileStore(cfg.ConversationsDir, cfg.Workdir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open conversation store")
	}

	promMetrics := observability.NewPromMetrics()
	registry := tools.NewRecordingRegistry(tools.NewRegistry(), func(ev tools.DispatchEvent) {
		outcome := "ok"
		if ev.Err != nil {
			outcome = "error"
			log.Warn().Str("tool", ev.Name).Err(ev.Err).Msg("tool dispatch error")
		}
		promMetrics.ToolDuration.WithLabelValues(ev.Name, outcome).Observe(ev.Duration.Seconds())
	})
	exec := cli.NewExecutor(cfg.Exec, cfg.Workdir)
	registry.Register(cli.NewTool(exec))
	registry.Register(web.NewTool(cfg.Web.SearXNGURL))
	registry.Register(web.NewScreenshotTool())
	registry.Register(web.NewFetchTool(web.NewFetcher()))
	registry.Register(tts.New(cfg, httpClient))
	registry.Register(codeexec.New(time.Duration(cfg.Exec.MaxCommandSeconds) * time.Second))

	fileRoots := []string{cfg.Workdir}
	registry.Register(filetool.NewReadTool(fileRoots, 0))
	registry.Register(filetool.NewWriteTool(fileRoots, 0))
	registry.Register(filetool.NewPatchTool(fileRoots, 0))
	registry.Register(filetool.NewListTool(fileRoots))
	registry.Register(filetool.NewEditorTool(fileRoots, 0))
	registry.Register(filetool.NewDeleteTool(fileRoots))
	registry.Register(plan.New())
	registry.Register(imagesview.New(convStore))

	dbManager, err := databases.NewManager(context.Background(), cfg.Databases)
	if err != nil {
		log.Warn().Err(err).Msg("database manager init failed, falling back to in-memory backends")
		dbManager, _ = databases.NewManager(context.Background(), config.DatabasesConfig{})
	}
	defer dbManager.Close()
	registry.Register(db.NewVectorUpsertTool(dbManager.Vector, cfg.Embedding))
	registry.Register(db.NewVectorQueryTool(dbManager.Vector))
	registry.Register(db.NewVectorDeleteTool(dbManager.Vector))
	registry.Register(db.NewSearchIndexTool(dbManager.Search))
	registry.Register(db.NewSearchQueryTool(dbManager.Search))
	registry.Register(db.NewGraphUpsertTool(dbManager.Graph))
	registry.Register(db.NewGraphQueryTool(dbManager.Graph))

	var artifactStore objectstore.ObjectStore
	if cfg.Projects.Backend == "s3" {
		s3Store, err := objectstore.NewS3Store(context.Background(), cfg.Projects.S3)
		if err != nil {
			log.Warn().Err(err).Msg("s3 object store init failed, falling back to in-memory artifact store")
			artifactStore = objectstore.NewMemoryStore()
		} else {
			artifactStore = s3Store
		}
	} else {
		artifactStore = objectstore.NewMemoryStore()
	}
	registry.Register(artifact.New(artifactStore, cfg.Projects.S3.Prefix))

	if cfg.Kafka.Brokers != "" {
		kafkaWriter := &kafkago.Writer{
			Addr:     kafkago.TCP(strings.Split(cfg.Kafka.Brokers, ",")...),
			Balancer: &kafkago.LeastBytes{},
		}
		defer kafkaWriter.Close()
		registry.Register(kafka.NewSendMessageToolWithOrchestratorTopic(kafkaWriter, cfg.Kafka.CommandsTopic))
	}

	if chatDSN := firstNonEmptyDSN(cfg.Databases.Chat.DSN, cfg.Databases.DefaultDSN); chatDSN != "" {
		if chatPool, err := databases.OpenPool(context.Background(), chatDSN); err != nil {
			log.Warn().Err(err).Msg("sql_query pool failed to open, tool not registered")
		} else if sqlTool := sqlquery.New(chatPool); sqlTool != nil {
			defer chatPool.Close()
			registry.Register(sqlTool)
		}
	}

	eng := &agent.Engine{
		LLM:                          provider,
		Tools:                        registry,
		MaxSteps:                     cfg.MaxSteps,
		MaxToolParallelism:           cfg.MaxToolParallelism,
		System:                       prompts.DefaultSystemPrompt(cfg.Workdir),
		Model:                        cfg.OpenAI.Model,
		SummaryEnabled:               cfg.SummaryEnabled,
		ContextWindowTokens:          cfg.SummaryContextWindowTokens,
		SummaryReserveBufferTokens:   cfg.SummaryReserveBufferTokens,
		SummaryTriggerPercent:        cfg.SummaryTriggerPercent,
		SummaryRecentTurns:           cfg.SummaryRecentTurns,
		SummaryMinKeepLastMessages:   cfg.SummaryMinKeepLastMessages,
		SummaryMaxSummaryChunkTokens: cfg.SummaryMaxSummaryChunkTokens,
	}
	if cfg.SystemPrompt != "" {
		eng.System = cfg.SystemPrompt
	}
	if cfg.MaxSteps == 0 {
		eng.MaxSteps = 8
	}
	eng.OnEvent = func(ev agent.Event) {
		switch ev.Type {
		case agent.EventFinal:
			promMetrics.IterationCounter.WithLabelValues(string(ev.Status)).Inc()
		case agent.EventCompressionStart:
			promMetrics.CompressionEvents.WithLabelValues("start").Inc()
		case agent.EventCompressionDone:
			promMetrics.CompressionEvents.WithLabelValues("done").Inc()
		case agent.EventCompressionFailed:
			promMetrics.CompressionEvents.WithLabelValues("failed").Inc()
		}
	}

	var authMiddleware func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		authDSN := firstNonEmptyDSN(cfg.Databases.DefaultDSN)
		if authDSN == "" {
			log.Warn().Msg("auth enabled but no database DSN configured, running unauthenticated")
		} else if pool, err := databases.OpenPool(context.Background(), authDSN); err != nil {
			log.Warn().Err(err).Msg("auth store pool failed to open, running unauthenticated")
		} else {
			authStore := auth.NewStore(pool, cfg.Auth.SessionTTLHours)
			if err := authStore.InitSchema(context.Background()); err != nil {
				log.Warn().Err(err).Msg("auth schema init failed, running unauthenticated")
			} else {
				authMiddleware = auth.Middleware(authStore, cfg.Auth.CookieName, true)
			}
		}
	}
	withAuth := func(h http.HandlerFunc) http.Handler {
		if authMiddleware == nil {
			return h
		}
		return authMiddleware(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/agent/run", withAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Prompt string `json:"prompt"`
			ConvID string `json:"conv_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Resolve a per-conversation workdir and any images queued for the
		// next turn before the request reaches the engine, so sandboxed
		// tools see the right base directory and session ID.
		resolveRunContext := func(ctx context.Context) (context.Context, []llmpkg.Message) {
			workDir := cfg.Workdir
			var history []llmpkg.Message
			if req.ConvID == "" {
				return sandbox.WithBaseDir(ctx, workDir), history
			}
			if _, err := validation.SessionID(req.ConvID); err != nil {
				return sandbox.WithBaseDir(ctx, workDir), history
			}
			ctx = sandbox.WithSessionID(ctx, req.ConvID)
			conv, err := convStore.Get(ctx, req.ConvID, "")
			if err != nil {
				return sandbox.WithBaseDir(ctx, workDir), history
			}
			if conv.OutputDir != "" {
				workDir = filepath.Join(cfg.Workdir, conv.OutputDir)
				if err := os.MkdirAll(workDir, 0o755); err != nil {
					log.Warn().Err(err).Str("conv_id", req.ConvID).Msg("failed to create conversation workdir")
				}
			}
			ctx = sandbox.WithBaseDir(ctx, workDir)
			if imgs, err := convStore.MaterializeImages(ctx, req.ConvID, ""); err == nil {
				if msg, ok, err := conversation.BuildImageInjectionMessage(imgs, workDir); err == nil && ok {
					history = append(history, msg)
				}
			}
			return ctx, history
		}

		// If no OpenAI API key is configured, return a deterministic dev response
		// so a caller can exercise the wire format locally without credentials.
		if cfg.OpenAI.APIKey == "" {
			if r.Header.Get("Accept") == "text/event-stream" {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				fl, _ := w.(http.Flusher)
				b, _ := json.Marshal("(dev) mock response: " + req.Prompt)
				fmt.Fprintf(w, "event: final\ndata: %s\n\n", b)
				if fl != nil {
					fl.Flush()
				}
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "(dev) mock response: " + req.Prompt})
			return
		}

		if r.Header.Get("Accept") == "text/event-stream" {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			fl, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "streaming not supported", http.StatusInternalServerError)
				return
			}

			runCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
			defer cancel()
			runCtx, history := resolveRunContext(runCtx)

			emit := func(kind, data string) {
				b, _ := json.Marshal(map[string]string{"type": kind, "data": data})
				fmt.Fprintf(w, "data: %s\n\n", b)
				fl.Flush()
			}
			eng.OnDelta = func(d string) { emit("delta", d) }
			eng.OnTool = func(name string, args []byte, result []byte, toolID string) {
				emit("tool", fmt.Sprintf("%s -> %s", name, string(result)))
			}

			res, err := eng.RunStream(runCtx, req.Prompt, history)
			if err != nil {
				log.Error().Err(err).Msg("agent run error")
				emit("error", err.Error())
				return
			}
			emit("final", res)
			return
		}

		runCtx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()
		runCtx, history := resolveRunContext(runCtx)
		result, err := eng.Run(runCtx, req.Prompt, history)
		if err != nil {
			log.Error().Err(err).Msg("agent run error")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"result": result})
	}))

	log.Info().Msg("agentd listening on :32180")
	if err := http.ListenAndServe(":32180", mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// firstNonEmptyDSN picks the first configured DSN, letting the auth store
// and sql_query tool share the default database connection when they don't
// have one of their own.
func firstNonEmptyDSN(dsns ...string) string {
	for _, d := range dsns {
		if t := strings.TrimSpace(d); t != "" {
			return t
		}
	}
	return ""
}
