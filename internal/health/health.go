// Package health exposes liveness, pipeline counters and a small runtime
// control surface over HTTP for stream-deck widgets and debugging.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/processor"
)

// Status is the /stats payload.
type Status struct {
	UptimeSeconds     int64              `json:"uptime_seconds"`
	Sources           map[string]bool    `json:"sources"`
	Counters          processor.Snapshot `json:"counters"`
	AnnouncementQueue int                `json:"announcement_queue"`
	AudioQueue        int                `json:"audio_queue"`
	DroppedClips      int64              `json:"dropped_clips"`
	Paused            bool               `json:"paused"`
}

// Controls are the live-adjustable knobs. Any nil field disables the
// corresponding update; all must be safe for concurrent use.
type Controls struct {
	SetPaused        func(bool)
	SetQueueCapacity func(int) error
	SetVoice         func(voice string, accent bool)
	SetVolume        func(float64) error
	SetRate          func(float64) error
}

// settingsUpdate is the POST /settings body. Pointer fields distinguish
// "leave alone" from zero values.
type settingsUpdate struct {
	QueueCapacity *int     `json:"queue_capacity,omitempty"`
	Voice         *string  `json:"voice,omitempty"`
	Accent        *bool    `json:"accent,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	Rate          *float64 `json:"rate,omitempty"`
}

// Server serves /health, /stats, /pause and /settings. The callbacks are
// invoked per request.
type Server struct {
	srv      *http.Server
	status   func() Status
	controls Controls
	log      *log.Logger
	start    time.Time
}

func NewServer(addr string, status func() Status, controls Controls) *Server {
	s := &Server{
		status:   status,
		controls: controls,
		log:      log.With("component", "health"),
		start:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	if controls.SetPaused != nil {
		mux.HandleFunc("/pause", s.handlePause)
	}
	mux.HandleFunc("/settings", s.handleSettings)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
		close(done)
	}()

	s.log.Info("health server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("health server failed", "err", err)
	}
	<-done
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handlePause flips the playback mute: POST /pause?on=true|false.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "use POST", http.StatusMethodNotAllowed)
		return
	}
	on := r.URL.Query().Get("on") == "true"
	s.controls.SetPaused(on)
	s.log.Info("pause toggled", "on", on)
	w.WriteHeader(http.StatusNoContent)
}

// handleSettings applies a partial settings update to the running pipeline.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "use POST", http.StatusMethodNotAllowed)
		return
	}

	var upd settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "bad settings body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if upd.QueueCapacity != nil && s.controls.SetQueueCapacity != nil {
		if err := s.controls.SetQueueCapacity(*upd.QueueCapacity); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Info("queue capacity updated", "capacity", *upd.QueueCapacity)
	}
	if upd.Voice != nil && s.controls.SetVoice != nil {
		accent := false
		if upd.Accent != nil {
			accent = *upd.Accent
		}
		s.controls.SetVoice(*upd.Voice, accent)
		s.log.Info("voice updated", "voice", *upd.Voice, "accent", accent)
	}
	if upd.Volume != nil && s.controls.SetVolume != nil {
		if err := s.controls.SetVolume(*upd.Volume); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Info("volume updated", "volume", *upd.Volume)
	}
	if upd.Rate != nil && s.controls.SetRate != nil {
		if err := s.controls.SetRate(*upd.Rate); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Info("rate updated", "rate", *upd.Rate)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	st.UptimeSeconds = int64(time.Since(s.start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Error("encode stats", "err", err)
	}
}
