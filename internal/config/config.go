// Package config loads the application settings from a YAML file, applies
// environment overrides for secrets, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the full application configuration. Zero values are filled
// with defaults by Load; secrets can come from the environment instead of
// the file.
type Settings struct {
	Speech      SpeechSettings      `yaml:"speech"`
	Engine      EngineSettings      `yaml:"engine"`
	Filters     FilterSettings      `yaml:"filters"`
	Translation TranslationSettings `yaml:"translation"`
	YouTube     YouTubeSettings     `yaml:"youtube"`
	Twitch      TwitchSettings      `yaml:"twitch"`
	Kick        KickSettings        `yaml:"kick"`
	Transcript  TranscriptSettings  `yaml:"transcript"`
	S3          S3Settings          `yaml:"s3"`
	Health      HealthSettings      `yaml:"health"`
}

type SpeechSettings struct {
	Voice         string  `yaml:"voice"`
	Accent        bool    `yaml:"accent"`
	Rate          float64 `yaml:"rate"`
	Volume        float64 `yaml:"volume"`
	SampleRate    int     `yaml:"sample_rate"`
	QueueCapacity int     `yaml:"queue_capacity"`
	DelaySeconds  float64 `yaml:"delay_seconds"`
	ReadAuthor    bool    `yaml:"read_author"`
	ReadPlatform  bool    `yaml:"read_platform"`
}

func (s SpeechSettings) Delay() time.Duration {
	return time.Duration(s.DelaySeconds * float64(time.Second))
}

type EngineSettings struct {
	URL string `yaml:"url"`
}

type FilterSettings struct {
	MinLength      int              `yaml:"min_length"`
	MaxLength      int              `yaml:"max_length"`
	StopWords      []string         `yaml:"stop_words"`
	SpamFilter     bool             `yaml:"spam_filter"`
	SkipSystem     bool             `yaml:"skip_system"`
	PrivilegedOnly bool             `yaml:"privileged_only"`
	Toxicity       ToxicitySettings `yaml:"toxicity"`
}

type ToxicitySettings struct {
	URL       string  `yaml:"url"`
	Threshold float64 `yaml:"threshold"`
}

type TranslationSettings struct {
	URL    string `yaml:"url"`
	Target string `yaml:"target"`
}

type YouTubeSettings struct {
	APIKey string `yaml:"api_key"`
	Video  string `yaml:"video"`
}

type TwitchSettings struct {
	ClientID     string `yaml:"client_id"`
	Nickname     string `yaml:"nickname"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	Channel      string `yaml:"channel"`
}

type KickSettings struct {
	Channel string `yaml:"channel"`
}

type TranscriptSettings struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	// RotateMinutes bounds how long one transcript file stays open.
	RotateMinutes int `yaml:"rotate_minutes"`
}

func (t TranscriptSettings) RotateEvery() time.Duration {
	return time.Duration(t.RotateMinutes) * time.Minute
}

type S3Settings struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

type HealthSettings struct {
	Addr string `yaml:"addr"`
}

// Load reads path, overlays environment variables, fills defaults, and
// validates. A missing file is an error; start from Default and Save to
// create one.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	s.applyEnv()
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns a runnable baseline with no platforms configured.
func Default() *Settings {
	return &Settings{
		Speech: SpeechSettings{
			Voice:         "default",
			Rate:          1.0,
			Volume:        1.0,
			SampleRate:    22050,
			QueueCapacity: 5,
			DelaySeconds:  1.5,
			ReadAuthor:    true,
		},
		Filters: FilterSettings{
			MinLength:  2,
			MaxLength:  200,
			SpamFilter: true,
			SkipSystem: true,
			Toxicity:   ToxicitySettings{Threshold: 0.8},
		},
		Transcript: TranscriptSettings{
			Dir:           "transcripts",
			RotateMinutes: 15,
		},
		Health: HealthSettings{
			Addr: ":8090",
		},
	}
}

// applyEnv overlays secrets so they can stay out of the config file.
func (s *Settings) applyEnv() {
	overlay(&s.YouTube.APIKey, "CHATVOICE_YOUTUBE_API_KEY")
	overlay(&s.Twitch.ClientID, "CHATVOICE_TWITCH_CLIENT_ID")
	overlay(&s.Twitch.AccessToken, "CHATVOICE_TWITCH_ACCESS_TOKEN")
	overlay(&s.Twitch.RefreshToken, "CHATVOICE_TWITCH_REFRESH_TOKEN")
	overlay(&s.Engine.URL, "CHATVOICE_ENGINE_URL")
	overlay(&s.S3.AccessKey, "AWS_ACCESS_KEY_ID")
	overlay(&s.S3.SecretKey, "AWS_SECRET_ACCESS_KEY")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (s *Settings) applyDefaults() {
	d := Default()
	if s.Speech.Voice == "" {
		s.Speech.Voice = d.Speech.Voice
	}
	if s.Speech.Rate == 0 {
		s.Speech.Rate = d.Speech.Rate
	}
	if s.Speech.Volume == 0 {
		s.Speech.Volume = d.Speech.Volume
	}
	if s.Speech.SampleRate == 0 {
		s.Speech.SampleRate = d.Speech.SampleRate
	}
	if s.Speech.QueueCapacity == 0 {
		s.Speech.QueueCapacity = d.Speech.QueueCapacity
	}
	if s.Speech.DelaySeconds == 0 {
		s.Speech.DelaySeconds = d.Speech.DelaySeconds
	}
	if s.Filters.MinLength == 0 {
		s.Filters.MinLength = d.Filters.MinLength
	}
	if s.Filters.MaxLength == 0 {
		s.Filters.MaxLength = d.Filters.MaxLength
	}
	if s.Filters.Toxicity.Threshold == 0 {
		s.Filters.Toxicity.Threshold = d.Filters.Toxicity.Threshold
	}
	if s.Transcript.Dir == "" {
		s.Transcript.Dir = d.Transcript.Dir
	}
	if s.Transcript.RotateMinutes == 0 {
		s.Transcript.RotateMinutes = d.Transcript.RotateMinutes
	}
	if s.Health.Addr == "" {
		s.Health.Addr = d.Health.Addr
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (s *Settings) Validate() error {
	var errs []error

	if s.Engine.URL == "" {
		errs = append(errs, errors.New("engine.url is required"))
	}
	if s.Speech.QueueCapacity < 1 || s.Speech.QueueCapacity > 200 {
		errs = append(errs, fmt.Errorf("speech.queue_capacity must be between 1 and 200, got %d", s.Speech.QueueCapacity))
	}
	if s.Speech.Rate <= 0 {
		errs = append(errs, fmt.Errorf("speech.rate must be positive, got %g", s.Speech.Rate))
	}
	if s.Speech.Volume < 0 || s.Speech.Volume > 2 {
		errs = append(errs, fmt.Errorf("speech.volume must be between 0 and 2, got %g", s.Speech.Volume))
	}
	if s.Speech.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("speech.sample_rate too low: %d", s.Speech.SampleRate))
	}
	if s.Filters.MinLength < 0 || s.Filters.MaxLength < s.Filters.MinLength {
		errs = append(errs, errors.New("filters.min_length/max_length out of order"))
	}
	if s.Filters.Toxicity.URL != "" &&
		(s.Filters.Toxicity.Threshold <= 0 || s.Filters.Toxicity.Threshold > 1) {
		errs = append(errs, fmt.Errorf("filters.toxicity.threshold must be in (0,1], got %g", s.Filters.Toxicity.Threshold))
	}
	if s.Translation.URL != "" && s.Translation.Target == "" {
		errs = append(errs, errors.New("translation.target is required when translation.url is set"))
	}
	if s.YouTube.Video != "" && s.YouTube.APIKey == "" {
		errs = append(errs, errors.New("youtube.api_key is required when youtube.video is set"))
	}
	if s.Twitch.Channel != "" && s.Twitch.Nickname == "" {
		errs = append(errs, errors.New("twitch.nickname is required when twitch.channel is set"))
	}
	if s.S3.Enabled && s.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket is required when s3 upload is enabled"))
	}
	if s.YouTube.Video == "" && s.Twitch.Channel == "" && s.Kick.Channel == "" {
		errs = append(errs, errors.New("no chat source configured"))
	}

	return errors.Join(errs...)
}

// Save writes the settings back to path. Used to persist rotated Twitch
// tokens.
func (s *Settings) Save(path string) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
