// Command notula joins a Google Meet meeting as a recording bot, captures
// captions and audio, answers wake-phrase questions live, and persists the
// transcribed, summarized, and indexed meeting record.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notulaai/notula/internal/agent"
	"github.com/notulaai/notula/internal/audio"
	"github.com/notulaai/notula/internal/browser"
	"github.com/notulaai/notula/internal/captions"
	"github.com/notulaai/notula/internal/config"
	"github.com/notulaai/notula/internal/index"
	"github.com/notulaai/notula/internal/job"
	"github.com/notulaai/notula/internal/observe"
	"github.com/notulaai/notula/internal/sink"
	"github.com/notulaai/notula/internal/summarize"
	"github.com/notulaai/notula/pkg/provider/asr"
	asrdg "github.com/notulaai/notula/pkg/provider/asr/deepgram"
	"github.com/notulaai/notula/pkg/provider/embeddings"
	oaembed "github.com/notulaai/notula/pkg/provider/embeddings/openai"
	"github.com/notulaai/notula/pkg/provider/llm"
	"github.com/notulaai/notula/pkg/provider/llm/anyllm"
	"github.com/notulaai/notula/pkg/provider/tts"
	ttsdg "github.com/notulaai/notula/pkg/provider/tts/deepgram"
	"github.com/notulaai/notula/pkg/store/blob"
	"github.com/notulaai/notula/pkg/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	meetURL := flag.String("url", "", "Google Meet link to join (required)")
	guestName := flag.String("name", "", "display name the bot joins with (overrides config)")
	userID := flag.String("user", "", "owner identifier used for storage paths (required)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "notula: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "notula: %v\n", err)
		}
		return 1
	}
	if *meetURL == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "notula: -url and -user are required")
		flag.Usage()
		return 1
	}
	name := cfg.Meeting.GuestName
	if *guestName != "" {
		name = *guestName
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("notula starting",
		"config", *configPath,
		"url", *meetURL,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "notula"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "err", err)
		return 1
	}
	ttsProvider, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}
	asrProvider, err := buildASR(cfg.Providers.ASR)
	if err != nil {
		slog.Error("failed to create asr provider", "err", err)
		return 1
	}
	embedProvider, err := buildEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("failed to create embeddings provider", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	pg, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimensions)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer pg.Close()

	blobStore, err := buildBlobStore(ctx, cfg.Storage.Blob)
	if err != nil {
		slog.Error("failed to create blob store", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	summarizer := summarize.New(llmProvider)
	indexer := index.New(embedProvider, pg)

	var agentOpts []agent.Option
	if cfg.Meeting.AckClip != "" {
		clip, err := loadAckClip(cfg.Meeting.AckClip, ttsProvider.SampleRate())
		if err != nil {
			slog.Error("failed to load ack clip", "path", cfg.Meeting.AckClip, "err", err)
			return 1
		}
		agentOpts = append(agentOpts, agent.WithAckClip(clip, ttsProvider.SampleRate()))
	}

	newCapture := func(ctx context.Context) (*job.Capture, error) {
		var driverOpts []browser.DriverOption
		if cfg.Meeting.Headless {
			driverOpts = append(driverOpts, browser.WithHeadless())
		}
		drv, err := browser.New(ctx, driverOpts...)
		if err != nil {
			return nil, err
		}
		manager := audio.NewManager(drv.PlayPCM, ttsProvider.SampleRate(),
			audio.WithStopFunc(drv.StopPlayback))
		assistant := agent.New(ttsProvider, llmProvider, manager, agentOpts...)
		wake := captions.NewWakeDetector(cfg.Meeting.WakePhrase)
		// Zero start time: timestamps anchor to the first tick after
		// admission so captions share the recording's clock.
		scraper := captions.NewScraper(drv, manager, wake, time.Time{},
			captions.WithBargeIn(assistant.BargeIn),
			captions.WithMetrics(observe.DefaultMetrics()))
		return &job.Capture{
			Browser: drv,
			Scraper: scraper,
			Agent:   assistant,
			Output:  manager,
		}, nil
	}
	newRecorder := func(outputPath string) job.Recorder {
		return sink.NewRecorder(cfg.Meeting.SinkName, outputPath)
	}
	router := sink.NewRouter(cfg.Meeting.SinkName)

	orch := job.New(newCapture, router, newRecorder, asrProvider, summarizer, indexer,
		blobStore, pg, cfg.Meeting.ScratchRoot,
		job.WithAdmissionTimeout(cfg.Meeting.AdmissionTimeout()),
		job.WithMetrics(observe.DefaultMetrics()),
	)

	// ── Run the meeting job ───────────────────────────────────────────────────
	status := orch.Run(ctx, job.Request{
		MeetURL:      *meetURL,
		GuestName:    name,
		UserID:       *userID,
		RecordBudget: cfg.Meeting.RecordBudget(),
	})

	for _, w := range status.Warnings {
		slog.Warn("job degradation", "warning", w)
	}
	if !status.Succeeded() {
		slog.Error("job failed", "status", status.Label(), "err", status.Err)
		return 1
	}
	slog.Info("job succeeded",
		"meeting_id", status.MeetingID,
		"audio_blob_key", status.AudioBlobKey,
		"warnings", len(status.Warnings),
	)
	if status.AudioBlobKey != "" {
		url, err := blobStore.Presign(ctx, status.AudioBlobKey, cfg.Storage.Blob.PresignTTL())
		if err != nil {
			slog.Warn("presigning audio link failed", "err", err)
		} else {
			slog.Info("audio download link", "url", url, "expires_in", cfg.Storage.Blob.PresignTTL())
		}
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("providers.llm is not configured")
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("providers.tts is not configured")
	}
	var opts []ttsdg.Option
	if entry.Model != "" {
		opts = append(opts, ttsdg.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, ttsdg.WithEndpoint(entry.BaseURL))
	}
	return ttsdg.New(entry.APIKey, opts...)
}

func buildASR(entry config.ProviderEntry) (asr.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("providers.asr is not configured")
	}
	var opts []asrdg.Option
	if entry.Model != "" {
		opts = append(opts, asrdg.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, asrdg.WithEndpoint(entry.BaseURL))
	}
	return asrdg.New(entry.APIKey, opts...)
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("providers.embeddings is not configured")
	}
	var opts []oaembed.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
	}
	return oaembed.New(entry.APIKey, entry.Model, opts...)
}

func buildBlobStore(ctx context.Context, cfg config.BlobConfig) (*blob.Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most S3-compatible stores need path-style addressing.
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(client)
	return blob.New(client, presigner, cfg.Bucket, cfg.Prefix), nil
}

// loadAckClip reads and decodes the wake-acknowledgment MP3 to mono PCM at
// the TTS provider's sample rate.
func loadAckClip(path string, sampleRate int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return audio.DecodeMP3(data, sampleRate)
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Notula — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  Guest name      : %-19s ║\n", clip(cfg.Meeting.GuestName))
	fmt.Printf("║  Wake phrase     : %-19s ║\n", clip(cfg.Meeting.WakePhrase))
	fmt.Printf("║  Record budget   : %-19s ║\n", cfg.Meeting.RecordBudget())
	fmt.Printf("║  Sink            : %-19s ║\n", clip(cfg.Meeting.SinkName))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, clip(value))
}

func clip(value string) string {
	if len(value) > 19 {
		return value[:16] + "…"
	}
	return value
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
