package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docentgo/internal/api"
	"docentgo/pkg/audio"
	"docentgo/pkg/chat"
	"docentgo/pkg/claim"
	"docentgo/pkg/clock"
	"docentgo/pkg/config"
	"docentgo/pkg/content"
	"docentgo/pkg/core"
	"docentgo/pkg/db"
	"docentgo/pkg/db/maintenance"
	"docentgo/pkg/llm"
	"docentgo/pkg/llm/backend"
	"docentgo/pkg/llm/prompts"
	"docentgo/pkg/llm/relay"
	"docentgo/pkg/logging"
	"docentgo/pkg/narration"
	"docentgo/pkg/probe"
	"docentgo/pkg/request"
	"docentgo/pkg/speech"
	"docentgo/pkg/speech/playout"
	"docentgo/pkg/store"
	"docentgo/pkg/tracker"
	"docentgo/pkg/tts/edgetts"
	"docentgo/pkg/version"
	"docentgo/pkg/watcher"
)

const defaultConfigPath = "configs/docent.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// A missing .env is fine; keys may come from the real environment.
	_ = godotenv.Load()

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("DocentGo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, appCfg.DB.OverridesCSV, appCfg.Content.CacheTTL.D()); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	clk := clock.Real{}
	tr := tracker.New()
	svcs := initCoreServices(appCfg, st, tr)

	engine, stopEngine := initSpeech(appCfg, clk, tr)
	defer stopEngine()
	floor := speech.NewFloor(engine)

	chatComps, err := initChat(appCfg, svcs.ReqClient, tr)
	if err != nil {
		return err
	}

	handlers := buildHandlers(ctx, appCfg, svcs, st, floor, clk, chatComps)
	defer handlers.Docent.Close()
	defer handlers.Conversations.Close()

	// Probes feed both the startup check and /health.
	probes := []probe.Probe{
		probe.Content(svcs.Content, "/api/themes", false),
		probe.Speech(engine, appCfg.Speech.Language, appCfg.Speech.VoicePriority),
		probe.LLM(chatComps.Provider),
	}
	healthJob := core.NewHealthJob(appCfg.Server.HealthInterval.D(), probe.DefaultTimeout, probes)
	if err := probe.AnalyzeResults(probe.Run(ctx, probes, probe.DefaultTimeout)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	handlers.Health = api.NewHealthHandler(healthJob)

	sched := setupScheduler(appCfg, clk, dbConn, svcs.Content, healthJob, svcs.Videos, map[string]core.Sweeper{
		"docent":        handlers.Docent,
		"conversations": handlers.Conversations,
		"quizzes":       handlers.Quizzes,
	})
	go sched.Start(ctx)

	return runServer(ctx, appCfg, handlers)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// CoreServices are the shared clients every handler builds on.
type CoreServices struct {
	ReqClient *request.Client
	Content   *content.Client
	Claims    *claim.Service
	Tracker   *tracker.Tracker
	Videos    *watcher.Service // nil without a static root
}

func initCoreServices(cfg *config.Config, st store.Store, tr *tracker.Tracker) *CoreServices {
	reqClient := request.New(tr, request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   cfg.Request.Timeout.D(),
		RateLimit: cfg.Request.RateLimit,
		BaseDelay: cfg.Request.Backoff.BaseDelay.D(),
		MaxDelay:  cfg.Request.Backoff.MaxDelay.D(),
	})

	var cache store.CacheStore
	if cfg.Content.CacheTTL > 0 {
		cache = st
	}
	contentClient := content.NewClient(reqClient, cfg.Content, cache, content.DefaultDataset())
	claims := claim.NewService(reqClient, contentClient.URL(cfg.Claim.Endpoint), st, st, clock.Real{})

	var videos *watcher.Service
	if cfg.Server.StaticDir != "" {
		videos = watcher.NewService(cfg.Server.StaticDir, cfg.Server.VideoDirs)
	}

	return &CoreServices{
		ReqClient: reqClient,
		Content:   contentClient,
		Claims:    claims,
		Tracker:   tr,
		Videos:    videos,
	}
}

// videoLibrary keeps a nil *watcher.Service from becoming a non-nil interface.
func videoLibrary(w *watcher.Service) api.VideoLibrary {
	if w == nil {
		return nil
	}
	return w
}

// initSpeech returns the engine named by the config and a stop function.
func initSpeech(cfg *config.Config, clk clock.Clock, tr *tracker.Tracker) (speech.Engine, func()) {
	switch cfg.Speech.Engine {
	case "simulated":
		slog.Info("Speech engine: simulated", "char_duration", cfg.Speech.CharDuration.D())
		voices := []speech.Voice{{ID: "simulated", Name: "Simulated", Lang: cfg.Speech.Language, Default: true}}
		return speech.NewSimulated(clk, cfg.Speech.CharDuration.D(), voices), func() {}
	default:
		player := audio.New(false)
		provider := edgetts.NewProvider(tr, cfg.TTS.EdgeTTS.Voices)
		slog.Info("Speech engine: playout", "tts", cfg.TTS.Engine, "work_dir", cfg.Speech.WorkDir)
		eng := playout.New(provider, player, cfg.Speech.WorkDir, cfg.Speech.BoundaryTick.D())
		return eng, func() {
			eng.Cancel()
			player.Shutdown()
		}
	}
}

// ChatComponents hold the completion path of the visitor chat.
type ChatComponents struct {
	Provider  llm.Provider
	Relay     *relay.Relay
	Transport chat.Transport
	Prompts   *prompts.Manager
}

func initChat(cfg *config.Config, rc *request.Client, tr *tracker.Tracker) (*ChatComponents, error) {
	provider, err := relay.NewProvider(cfg.LLM, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	var asker relay.Asker
	if cfg.LLM.Backend.BaseURL != "" {
		asker = backend.NewClient(rc, cfg.LLM.Backend)
	}
	r := relay.New(provider, asker, cfg.LLM)

	promptMgr, err := prompts.NewManager(cfg.LLM.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	var transport chat.Transport = relay.NewTransport(r)
	if cfg.Chat.Endpoint != "" {
		slog.Info("Chat uses a remote completion endpoint", "endpoint", cfg.Chat.Endpoint)
		transport = chat.NewHTTPTransport(rc, cfg.Chat.Endpoint)
	}

	return &ChatComponents{
		Provider:  provider,
		Relay:     r,
		Transport: transport,
		Prompts:   promptMgr,
	}, nil
}

func voiceParams(lang string, v config.VoiceProfile) speech.Params {
	return speech.Params{Lang: lang, Rate: v.Rate, Pitch: v.Pitch, Volume: v.Volume}
}

func buildHandlers(ctx context.Context, cfg *config.Config, svcs *CoreServices, st store.Store, floor *speech.Floor, clk clock.Clock, cc *ChatComponents) api.Handlers {
	ttl := cfg.Server.SessionTTL.D()
	policy := speech.RetryPolicy{MaxAttempts: cfg.Speech.RetryAttempts, Timeout: cfg.Speech.StartTimeout.D()}

	// Pick the preferred voice once; engines without a listing use their default.
	var voice *speech.Voice
	if voices, err := floor.Engine().Voices(ctx); err != nil {
		slog.Warn("Voice listing failed, using engine default", "error", err)
	} else {
		voice = speech.SelectVoice(voices, cfg.Speech.Language, cfg.Speech.VoicePriority)
	}
	narrationVoice := voiceParams(cfg.Speech.Language, cfg.Narration.Voice)
	narrationVoice.Voice = voice
	chatVoice := voiceParams(cfg.Speech.Language, cfg.Chat.Voice)
	chatVoice.Voice = voice

	docent := api.NewDocentHandler(svcs.Content, st, narration.NewVideoResolver(cfg.Narration), floor, clk, api.DocentSettings{
		Timing: narration.TimingFromConfig(cfg.Narration),
		Policy: policy,
		Voice:  narrationVoice,
		TTL:    ttl,
	})
	conversations := api.NewConversationHandler(svcs.Content, cc.Prompts, cc.Transport, floor, clk, api.ChatSettings{
		Typewriter:     chat.TypewriterConfigFrom(cfg.Chat),
		Stream:         cfg.Chat.Stream,
		MaxLines:       cfg.Chat.MaxLines,
		UseBackendChat: cfg.LLM.Backend.Enabled,
		SpeakReplies:   cfg.Chat.SpeakReplies,
		Voice:          chatVoice,
		Policy:         policy,
		TTL:            ttl,
	})
	quizzes := api.NewQuizHandler(svcs.Content, clk, ttl)

	return api.Handlers{
		Stats: api.NewStatsHandler(svcs.Tracker, map[string]api.SessionCounter{
			"docent":        docent,
			"conversations": conversations,
			"quizzes":       quizzes,
		}, cfg.LLM.Fallback),
		Content:       api.NewContentHandler(svcs.Content, floor.Engine()),
		Docent:        docent,
		Relay:         cc.Relay,
		Conversations: conversations,
		Quizzes:       quizzes,
		Overrides:     api.NewOverrideHandler(st, videoLibrary(svcs.Videos)),
		Claims:        api.NewClaimHandler(svcs.Claims, clk),
	}
}

func setupScheduler(cfg *config.Config, clk clock.Clock, pruner core.Pruner, src core.ContentSource, health *core.HealthJob, videos *watcher.Service, sessions map[string]core.Sweeper) *core.Scheduler {
	sched := core.NewScheduler(cfg.Server.TickInterval.D(), clk)
	sched.AddJob(core.NewSweepJob(cfg.Server.SweepInterval.D(), sessions))
	sched.AddJob(health)
	if ttl := cfg.Content.CacheTTL.D(); ttl > 0 {
		sched.AddJob(core.NewPruneJob(24*time.Hour, pruner, ttl))
	}
	if every := cfg.Server.WarmupInterval.D(); every > 0 {
		sched.AddJob(core.NewWarmupJob(every, src))
	}
	if every := cfg.Server.VideoScan.D(); videos != nil && every > 0 {
		videos.CheckNew()
		sched.AddJob(core.NewVideoScanJob(every, videos))
	}
	return sched
}

func runServer(ctx context.Context, cfg *config.Config, h api.Handlers) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server, h, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
