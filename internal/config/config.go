// Package config loads go-parrot settings from config.ini, .env and the
// process environment.
//
// Precedence, lowest first: app.DefaultConfig, the INI file, .env, the
// environment, then command-line flags (applied by cmd/voicechat).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/joho/godotenv"

	"github.com/teslashibe/go-parrot/pkg/app"
)

// Default file locations.
const (
	DefaultPath    = "config.ini"
	DefaultEnvFile = ".env"
)

// Load applies the INI file at path, then .env, then the environment to cfg.
// A missing file at DefaultPath is not an error; any other missing path is.
func Load(path string, cfg *app.Config) error {
	if path == "" {
		path = DefaultPath
	}

	if err := LoadFile(path, cfg); err != nil {
		if !(errors.Is(err, os.ErrNotExist) && path == DefaultPath) {
			return err
		}
	}

	if err := LoadDotEnv(DefaultEnvFile); err != nil {
		return err
	}
	return ApplyEnv(cfg)
}

// LoadDotEnv loads variables from the given .env files if they exist.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LoadFile reads an INI file into cfg. Only keys present in the file are applied.
func LoadFile(path string, cfg *app.Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return apply(f, cfg)
}

// Parse reads INI content from data into cfg.
func Parse(data []byte, cfg *app.Config) error {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, data)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return apply(f, cfg)
}

func apply(f *ini.File, cfg *app.Config) error {
	r := &reader{}

	def := f.Section(ini.DefaultSection)
	r.str(def, "start_prompt", &cfg.StartPrompt)
	r.str(def, "ollama_model", &cfg.OllamaModel)
	r.str(def, "applio_tts_voice", &cfg.ApplioTTSVoice)
	r.str(def, "applio_pth_path", &cfg.ApplioPTHPath)
	r.str(def, "applio_index_path", &cfg.ApplioIndexPath)
	r.integer(def, "input_device_index", &cfg.InputDeviceIndex)
	r.integer(def, "output_device_index", &cfg.OutputDeviceIndex)
	r.str(def, "applio_tts_output_path", &cfg.ApplioTTSOutputPath)
	r.str(def, "applio_rvc_output_path", &cfg.ApplioRVCOutputPath)
	r.raw(def, "filtered_chars", &cfg.FilteredChars)
	r.str(def, "user", &cfg.User)
	r.str(def, "prompt_mode", &cfg.PromptMode)
	r.str(def, "stop_phrase", &cfg.StopPhrase)
	r.integer(def, "max_consecutive_failures", &cfg.MaxConsecutiveFailures)
	r.boolean(def, "delete_artifacts", &cfg.DeleteArtifacts)
	r.str(def, "log_level", &cfg.LogLevel)
	r.str(def, "log_format", &cfg.LogFormat)

	gradio := f.Section("GRADIO_CLIENT")
	r.str(gradio, "url", &cfg.ApplioURL)
	r.str(gradio, "protocol", &cfg.ApplioProtocol)
	r.integer(gradio, "pitch", &cfg.ApplioPitch)
	r.str(gradio, "f0_method", &cfg.ApplioF0Method)
	r.duration(gradio, "tts_timeout", &cfg.TTSTimeout)
	r.duration(gradio, "rvc_timeout", &cfg.RVCTimeout)

	llm := f.Section("OLLAMA")
	r.list(llm, "backend", &cfg.LLMBackends)
	r.str(llm, "url", &cfg.OllamaURL)
	r.str(llm, "model", &cfg.OllamaModel)
	r.str(llm, "openai_base_url", &cfg.OpenAIBaseURL)
	r.float(llm, "temperature", &cfg.Temperature)
	r.duration(llm, "timeout", &cfg.LLMTimeout)

	stt := f.Section("STT")
	r.list(stt, "backend", &cfg.STTBackends)
	r.str(stt, "language", &cfg.STTLanguage)
	r.duration(stt, "timeout", &cfg.STTTimeout)
	r.str(stt, "google_credentials_file", &cfg.GoogleCredentialsFile)
	r.str(stt, "google_endpoint", &cfg.GoogleSTTEndpoint)
	r.str(stt, "whisper_url", &cfg.WhisperURL)
	r.str(stt, "whisper_model", &cfg.WhisperModel)

	audio := f.Section("AUDIO")
	r.str(audio, "backend", &cfg.AudioBackend)
	r.str(audio, "input_device", &cfg.InputDevice)
	r.str(audio, "output_device", &cfg.OutputDevice)
	r.integer(audio, "input_sample_rate", &cfg.InputSampleRate)
	r.integer(audio, "output_sample_rate", &cfg.OutputSampleRate)
	r.boolean(audio, "normalize", &cfg.Normalize)
	r.str(audio, "capture_mode", &cfg.CaptureMode)
	r.float(audio, "vad_threshold", &cfg.VADThreshold)
	r.duration(audio, "prefix_padding", &cfg.PrefixPadding)
	r.duration(audio, "silence_duration", &cfg.SilenceDuration)
	r.duration(audio, "max_utterance", &cfg.MaxUtterance)
	r.duration(audio, "listen_timeout", &cfg.ListenTimeout)

	hist := f.Section("HISTORY")
	r.boolean(hist, "enabled", &cfg.HistoryEnabled)
	r.str(hist, "backend", &cfg.HistoryBackend)
	r.str(hist, "dir", &cfg.HistoryDir)
	r.str(hist, "redis_url", &cfg.RedisURL)
	r.integer(hist, "max_turns", &cfg.HistoryMaxTurns)

	dash := f.Section("DASHBOARD")
	r.boolean(dash, "enabled", &cfg.DashboardEnabled)
	r.str(dash, "addr", &cfg.DashboardAddr)

	return r.err
}

// reader accumulates the first conversion error so apply stays linear.
type reader struct {
	err error
}

func (r *reader) key(sec *ini.Section, name string) (*ini.Key, bool) {
	if r.err != nil || !sec.HasKey(name) {
		return nil, false
	}
	return sec.Key(name), true
}

func (r *reader) fail(sec *ini.Section, name string, err error) {
	r.err = fmt.Errorf("[%s] %s: %w", sec.Name(), name, err)
}

func (r *reader) str(sec *ini.Section, name string, dst *string) {
	if k, ok := r.key(sec, name); ok {
		*dst = strings.TrimSpace(k.String())
	}
}

// raw keeps surrounding whitespace, which matters for character sets.
func (r *reader) raw(sec *ini.Section, name string, dst *string) {
	if k, ok := r.key(sec, name); ok {
		*dst = k.Value()
	}
}

func (r *reader) integer(sec *ini.Section, name string, dst *int) {
	if k, ok := r.key(sec, name); ok {
		v, err := k.Int()
		if err != nil {
			r.fail(sec, name, err)
			return
		}
		*dst = v
	}
}

func (r *reader) float(sec *ini.Section, name string, dst *float64) {
	if k, ok := r.key(sec, name); ok {
		v, err := k.Float64()
		if err != nil {
			r.fail(sec, name, err)
			return
		}
		*dst = v
	}
}

func (r *reader) boolean(sec *ini.Section, name string, dst *bool) {
	if k, ok := r.key(sec, name); ok {
		v, err := k.Bool()
		if err != nil {
			r.fail(sec, name, err)
			return
		}
		*dst = v
	}
}

func (r *reader) duration(sec *ini.Section, name string, dst *time.Duration) {
	if k, ok := r.key(sec, name); ok {
		v, err := parseDuration(k.String())
		if err != nil {
			r.fail(sec, name, err)
			return
		}
		*dst = v
	}
}

func (r *reader) list(sec *ini.Section, name string, dst *[]string) {
	if k, ok := r.key(sec, name); ok {
		*dst = splitList(k.String())
	}
}

// parseDuration accepts Go durations ("1.5s") and bare seconds ("30").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
