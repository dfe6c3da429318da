// OttoNav is a hands-free step navigator for recipes: say "next",
// "previous" or "repeat" while each step is read aloud.
//
// Usage:
//
//	ottonav [-verbose] [-quiet] [-engine vosk|whisper|none] [-recipe id]
package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/ottonav/internal/command"
	"github.com/hammamikhairi/ottonav/internal/config"
	"github.com/hammamikhairi/ottonav/internal/display"
	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/engine"
	"github.com/hammamikhairi/ottonav/internal/logger"
	"github.com/hammamikhairi/ottonav/internal/playback"
	"github.com/hammamikhairi/ottonav/internal/recipe"
	"github.com/hammamikhairi/ottonav/internal/recognition"
	"github.com/hammamikhairi/ottonav/internal/speech"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Logs go to a file by default so the terminal UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libraries (the whisper transcriber) log through the
	// standard log package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logger.ParseLevel(cfg.LogLevel), logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classifier, err := command.New(command.WithLocale(cfg.Locale))
	if err != nil {
		fmt.Fprintf(os.Stderr, "classifier: %v\n", err)
		os.Exit(2)
	}

	recEngine, closeRec := buildRecognizer(cfg, log)
	defer closeRec()
	audio := buildAudio(cfg, log)

	session := recognition.New(recEngine, log,
		recognition.WithLocale(cfg.Locale),
		recognition.WithRestartDelay(cfg.RestartDelay),
		recognition.WithSuccessWindow(cfg.SuccessWindow),
		recognition.WithTriggerLogSize(cfg.TriggerLogSize),
	)
	channel := playback.New(audio, log, playback.WithStallTimeout(cfg.StallTimeout))
	defer channel.Close()

	nav := engine.NewNavigator(session, channel, log,
		engine.WithClassifier(classifier),
		engine.WithNarrationTimeout(cfg.NarrationTimeout),
	)
	defer nav.Dispose()

	ui := display.NewUI()
	unsub := nav.Subscribe(ui.Render)
	defer unsub()
	ui.Render(nav.State())

	app := &cliApp{
		nav:     nav,
		recipes: recipe.NewMemorySource(log),
		out:     ui,
		log:     log.Named("app"),
	}

	fmt.Println(display.RenderBanner())
	fmt.Println(display.BannerStyle.Render("  Type 'list' to pick a recipe, 'start' for voice commands, 'help' for more."))
	fmt.Println()

	go func() {
		ui.WaitReady()
		if cfg.Recipe != "" {
			if err := app.selectRecipe(ctx, cfg.Recipe); err != nil {
				app.report(err)
			}
		}
		if cfg.Engine != config.EngineNone {
			app.handle(ctx, "start")
		}
		app.run(ctx, ui.InputChan())
		ui.Quit()
	}()

	// Bubble Tea owns the terminal until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
}

// buildRecognizer picks the recognition engine. A missing model or binary
// degrades to the no-op engine, which the session reports as unsupported.
func buildRecognizer(cfg *config.Config, log *logger.Logger) (domain.RecognitionEngine, func()) {
	switch cfg.Engine {
	case config.EngineVosk:
		v, err := speech.NewVoskRecognizer(cfg.VoskModel, log,
			speech.WithSilenceTimeout(cfg.SilenceTimeout))
		if err != nil {
			log.Error("vosk unavailable, voice disabled: %v", err)
			return speech.NoOpRecognizer{}, func() {}
		}
		log.Info("voice input: vosk (model=%s)", cfg.VoskModel)
		return v, v.Close

	case config.EngineWhisper:
		if _, err := os.Stat(cfg.WhisperModel); err != nil {
			log.Error("whisper model not found at %s, voice disabled", cfg.WhisperModel)
			return speech.NoOpRecognizer{}, func() {}
		}
		_ = os.MkdirAll(cfg.WhisperTempDir, 0o755)
		cli := speech.NewWhisperCLI(cfg.WhisperBin, cfg.WhisperModel, cfg.WhisperTempDir, log)
		w := speech.NewWhisperRecognizer(cli, log,
			speech.WithRecordDuration(cfg.RecordDuration))
		log.Info("voice input: whisper (bin=%s, model=%s, chunk=%s)", cfg.WhisperBin, cfg.WhisperModel, cfg.RecordDuration)
		return w, w.Stop
	}
	return speech.NoOpRecognizer{}, func() {}
}

// buildAudio returns the oto engine backed by Azure narration, or a silent
// engine when speech is disabled or the device is unavailable.
func buildAudio(cfg *config.Config, log *logger.Logger) domain.AudioEngine {
	if !cfg.SpeechEnabled() {
		if !cfg.NoSpeech {
			log.Info("narration audio disabled: set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable")
		}
		return speech.NewNoOpAudio(log)
	}

	tts := speech.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log,
		speech.WithVoice(cfg.Voice),
		speech.WithSynthesisLocale(cfg.Locale),
	)
	cache := speech.NewNarrationCache(cfg.Voice, log,
		speech.WithCacheDir(cfg.CacheDir, cfg.DiskCache),
		speech.WithMaxEntries(cfg.CacheEntries),
	)
	oto, err := speech.NewOtoEngine(speech.NewNarrationSource(tts, cache, log), log)
	if err != nil {
		log.Error("audio player init failed, narration disabled: %v", err)
		return speech.NewNoOpAudio(log)
	}
	log.Info("narration enabled (voice=%s, region=%s)", cfg.Voice, cfg.AzureRegion)
	return oto
}
