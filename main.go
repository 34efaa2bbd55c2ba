// chatvoice reads live chat from YouTube, Twitch and Kick, filters it, and
// speaks the surviving messages through a local TTS engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/auth"
	"github.com/fjudin/chatvoice/internal/chat"
	"github.com/fjudin/chatvoice/internal/chat/kick"
	"github.com/fjudin/chatvoice/internal/chat/twitch"
	"github.com/fjudin/chatvoice/internal/chat/youtube"
	"github.com/fjudin/chatvoice/internal/config"
	"github.com/fjudin/chatvoice/internal/health"
	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/message"
	"github.com/fjudin/chatvoice/internal/playback"
	"github.com/fjudin/chatvoice/internal/processor"
	"github.com/fjudin/chatvoice/internal/queue"
	"github.com/fjudin/chatvoice/internal/speech"
	"github.com/fjudin/chatvoice/internal/toxicity"
	"github.com/fjudin/chatvoice/internal/transcript"
	"github.com/fjudin/chatvoice/internal/translate"
	"github.com/fjudin/chatvoice/internal/uploader"
)

const (
	uiTick    = 100 * time.Millisecond
	statsTick = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	login := flag.Bool("login", false, "run the Twitch device login flow, store the tokens, and exit")
	flag.Parse()

	log.SetLevel(log.InfoLevel)
	if os.Getenv("CHATVOICE_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	if *login {
		if err := runLogin(*configPath); err != nil {
			log.Fatal("twitch login failed", "err", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("configuration error", "err", err)
	}

	if err := run(cfg, *configPath); err != nil {
		log.Fatal("fatal", "err", err)
	}
}

// runLogin walks the user through the device grant and persists the tokens.
func runLogin(configPath string) error {
	cfg, loadErr := config.Load(configPath)
	if loadErr != nil {
		return loadErr
	}
	if cfg.Twitch.ClientID == "" {
		return fmt.Errorf("twitch.client_id is required for login")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ta := auth.NewTwitchAuth(cfg.Twitch.ClientID)
	dc, err := ta.StartDeviceFlow(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Open %s and enter the code: %s\n", dc.VerificationURI, dc.UserCode)

	tok, err := ta.PollToken(ctx, dc)
	if err != nil {
		return err
	}

	cfg.Twitch.AccessToken = tok.AccessToken
	cfg.Twitch.RefreshToken = tok.RefreshToken
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	log.Info("tokens saved", "path", configPath)
	return nil
}

func run(cfg *config.Settings, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	box := mailbox.New()
	stats := &processor.Stats{}
	announcements := queue.New[speech.Announcement](cfg.Speech.QueueCapacity)
	clips := queue.New[speech.Clip](cfg.Speech.QueueCapacity)

	var scorer toxicity.Scorer
	if cfg.Filters.Toxicity.URL != "" {
		scorer = toxicity.NewHTTPScorer(cfg.Filters.Toxicity.URL)
	}
	var translator translate.Translator
	if cfg.Translation.URL != "" {
		tr, err := translate.NewHTTPTranslator(cfg.Translation.URL)
		if err != nil {
			return err
		}
		translator = tr
	}

	proc := processor.New(processor.Options{
		MinLength:         cfg.Filters.MinLength,
		MaxLength:         cfg.Filters.MaxLength,
		StopWords:         cfg.Filters.StopWords,
		SpamFilter:        cfg.Filters.SpamFilter,
		SkipSystem:        cfg.Filters.SkipSystem,
		PrivilegedOnly:    cfg.Filters.PrivilegedOnly,
		ReadAuthor:        cfg.Speech.ReadAuthor,
		ReadPlatform:      cfg.Speech.ReadPlatform,
		ToxicityThreshold: cfg.Filters.Toxicity.Threshold,
		TranslateTarget:   cfg.Translation.Target,
	}, stats, box, scorer, translator)

	engine := speech.NewHTTPEngine(cfg.Engine.URL)
	synth := speech.NewSynthesizer(announcements, clips, engine,
		cfg.Speech.Voice, cfg.Speech.Accent, cfg.Speech.Volume, cfg.Speech.Rate, box)

	output, err := playback.NewOtoOutput(cfg.Speech.SampleRate)
	if err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	defer output.Close()
	player := playback.NewWorker(clips, output, stats, box, cfg.Speech.Delay())

	var recorder *transcript.Recorder
	if cfg.Transcript.Enabled {
		recorder, err = transcript.NewRecorder(cfg.Transcript.Dir, cfg.Transcript.RotateEvery())
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup

	if cfg.S3.Enabled && recorder != nil {
		up, err := uploader.New(ctx, uploader.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return err
		}
		if err := up.ScanExisting(ctx, cfg.Transcript.Dir); err != nil {
			log.Warn("leftover transcript scan failed", "err", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			up.Run(ctx, recorder.Files())
		}()
	}

	sources := newSourceTable()
	adapters := buildAdapters(ctx, cfg, configPath, proc, announcements, box, sources)
	if len(adapters) == 0 {
		return fmt.Errorf("no chat source configured")
	}

	for name, a := range adapters {
		wg.Add(1)
		go func(name string, a chat.Adapter) {
			defer wg.Done()
			if err := a.Run(ctx); err != nil {
				log.Error("adapter stopped", "platform", name, "err", err)
			}
		}(name, a)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		synth.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		player.Run(ctx)
	}()

	// Periodic counter snapshots for the display.
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(statsTick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				snap := stats.Snapshot()
				box.Post(mailbox.StatsEvent(mailbox.Stats{
					Messages: snap.Messages,
					Spoken:   snap.Spoken,
					Spam:     snap.Spam,
					Queued:   announcements.Len() + clips.Len(),
				}))
			}
		}
	}()

	hs := health.NewServer(cfg.Health.Addr, func() health.Status {
		return health.Status{
			Sources:           sources.snapshot(),
			Counters:          stats.Snapshot(),
			AnnouncementQueue: announcements.Len(),
			AudioQueue:        clips.Len(),
			DroppedClips:      clips.Dropped(),
			Paused:            player.Paused(),
		}
	}, health.Controls{
		SetPaused: player.SetPaused,
		SetQueueCapacity: func(n int) error {
			if n < 1 || n > 200 {
				return fmt.Errorf("queue capacity must be between 1 and 200, got %d", n)
			}
			announcements.Resize(n)
			clips.Resize(n)
			return nil
		},
		SetVoice: synth.SetVoice,
		SetVolume: func(v float64) error {
			if v < 0 || v > 2 {
				return fmt.Errorf("volume must be between 0 and 2, got %g", v)
			}
			synth.SetVolume(v)
			return nil
		},
		SetRate: func(v float64) error {
			if v <= 0 {
				return fmt.Errorf("rate must be positive, got %g", v)
			}
			synth.SetRate(v)
			return nil
		},
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		hs.Run(ctx)
	}()

	// The mailbox drain is the single consumer of display events; it also
	// feeds the transcript.
	sink := newConsoleSink(recorder)
	box.Run(ctx, sink, uiTick)

	log.Info("shutting down")
	for _, a := range adapters {
		a.Stop()
	}
	output.Stop()
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Warn("transcript close failed", "err", err)
		}
	}
	wg.Wait()
	return nil
}

// buildAdapters creates one adapter per configured platform.
func buildAdapters(ctx context.Context, cfg *config.Settings, configPath string, proc *processor.Processor,
	announcements *queue.Queue[speech.Announcement], box *mailbox.Mailbox, sources *sourceTable) map[string]chat.Adapter {

	adapters := map[string]chat.Adapter{}

	deliver := func(platform message.Platform) func(id, author, text string, privileged bool) {
		return func(id, author, text string, privileged bool) {
			ann := proc.Process(ctx, message.ChatMessage{
				ID:         id,
				Platform:   platform,
				Author:     author,
				Text:       text,
				Privileged: privileged,
				ReceivedAt: time.Now(),
			})
			if ann != nil {
				announcements.Push(*ann)
			}
		}
	}

	callbacks := func(platform message.Platform) chat.Callbacks {
		flag := sources.register(string(platform))
		return chat.Callbacks{
			OnConnect: func() {
				flag.Store(true)
				box.Post(mailbox.State(platform, true))
			},
			OnDisconnect: func() {
				flag.Store(false)
				box.Post(mailbox.State(platform, false))
			},
			OnError: func(err error) {
				box.Post(mailbox.Systemf(mailbox.LevelError, "%s: %v", platform, err))
			},
			OnMessage: deliver(platform),
		}
	}

	if cfg.YouTube.Video != "" {
		adapters["youtube"] = youtube.New(youtube.Config{
			APIKey: cfg.YouTube.APIKey,
			Video:  cfg.YouTube.Video,
		}, callbacks(message.PlatformYouTube))
	}

	if cfg.Twitch.Channel != "" {
		var tokens twitch.TokenSource
		if cfg.Twitch.ClientID != "" && cfg.Twitch.RefreshToken != "" {
			src := auth.NewSource(auth.NewTwitchAuth(cfg.Twitch.ClientID), cfg.Twitch.RefreshToken)
			src.OnRotate = func(access, refresh string) {
				cfg.Twitch.AccessToken = access
				cfg.Twitch.RefreshToken = refresh
				if err := cfg.Save(configPath); err != nil {
					log.Warn("could not persist rotated tokens", "err", err)
				}
			}
			tokens = src
		}
		adapters["twitch"] = twitch.New(twitch.Config{
			Nickname:    cfg.Twitch.Nickname,
			AccessToken: cfg.Twitch.AccessToken,
			Channel:     cfg.Twitch.Channel,
			Tokens:      tokens,
		}, callbacks(message.PlatformTwitch))
	}

	if cfg.Kick.Channel != "" {
		adapters["kick"] = kick.New(kick.Config{
			Channel: cfg.Kick.Channel,
		}, callbacks(message.PlatformKick))
	}

	return adapters
}

// sourceTable tracks which platforms are currently connected.
type sourceTable struct {
	mu    sync.Mutex
	flags map[string]*atomic.Bool
}

func newSourceTable() *sourceTable {
	return &sourceTable{flags: map[string]*atomic.Bool{}}
}

func (s *sourceTable) register(name string) *atomic.Bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &atomic.Bool{}
	s.flags[name] = f
	return f
}

func (s *sourceTable) snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.flags))
	for name, f := range s.flags {
		out[name] = f.Load()
	}
	return out
}
