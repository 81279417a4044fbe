// Package narration drives text-to-speech playback for the stop editor. It
// owns the single platform speech resource and guarantees that two
// utterances are never audible at the same time.
package narration

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

const defaultLanguage = "es-ES"

var errMissingEngine = errors.New("narration: speech engine is required")

// State enumerates the playback states.
type State int

const (
	// StateIdle means no utterance is in flight.
	StateIdle State = iota
	// StateSpeaking means an utterance is playing.
	StateSpeaking
	// StatePaused means an utterance is suspended and can resume.
	StatePaused
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Engine is the platform speech boundary. Calls look synchronous but only
// trigger playback; no completion callback is consumed.
type Engine interface {
	Speak(text, languageTag string)
	Pause()
	Resume()
	Stop()
}

// ControllerConfig describes the controller dependencies.
type ControllerConfig struct {
	Engine   Engine
	Language string
	Logger   *zap.Logger
}

// Controller is a small state machine over the speech engine, decoupled from
// persistence. It expects to be driven by a single goroutine.
type Controller struct {
	engine   Engine
	language string
	logger   *zap.Logger
	state    State
}

// NewController constructs a controller after validating its configuration.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Engine == nil {
		return nil, errMissingEngine
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: cfg.Engine, language: language, logger: logger, state: StateIdle}, nil
}

// State returns the current playback state.
func (c *Controller) State() State {
	return c.state
}

// Play starts speaking the text. Any in-flight utterance is stopped first so
// playback never overlaps. Blank text is ignored.
func (c *Controller) Play(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	if c.state != StateIdle {
		c.engine.Stop()
	}
	c.engine.Speak(trimmed, c.language)
	c.state = StateSpeaking
}

// PauseOrResume suspends a playing utterance or resumes a paused one. It is
// a no-op while idle.
func (c *Controller) PauseOrResume() {
	switch c.state {
	case StateSpeaking:
		c.engine.Pause()
		c.state = StatePaused
	case StatePaused:
		c.engine.Resume()
		c.state = StateSpeaking
	}
}

// Stop halts playback from any state and returns to idle.
func (c *Controller) Stop() {
	c.engine.Stop()
	c.state = StateIdle
}

type logEngine struct {
	logger *zap.Logger
}

// NewLogEngine returns an Engine that records speech calls instead of
// producing audio, for deployments without a platform speech backend.
func NewLogEngine(logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logEngine{logger: logger}
}

func (e *logEngine) Speak(text, languageTag string) {
	e.logger.Info("narration speak", zap.String("language", languageTag), zap.Int("length", len(text)))
}

func (e *logEngine) Pause() {
	e.logger.Info("narration pause")
}

func (e *logEngine) Resume() {
	e.logger.Info("narration resume")
}

func (e *logEngine) Stop() {
	e.logger.Info("narration stop")
}
