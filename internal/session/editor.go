package session

import (
	"context"
	"errors"
	"strings"

	"github.com/triana-labs/tourwalk/backend/internal/gateway"
	"github.com/triana-labs/tourwalk/backend/internal/narration"
	"github.com/triana-labs/tourwalk/backend/internal/tours"
	"go.uber.org/zap"
)

// Mode enumerates the states of the single shared create/edit modal.
type Mode int

const (
	// ModeClosed means the modal is hidden and the draft is empty.
	ModeClosed Mode = iota
	// ModeCreating means the modal captures a new stop at a coordinate.
	ModeCreating
	// ModeEditing means the modal edits an existing stop.
	ModeEditing
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	default:
		return "closed"
	}
}

// User-facing failure messages, reported once per action.
const (
	MessageCannotModify = "You may not modify this item."
	MessageCannotDelete = "You may not delete this item."
	MessageConnectivity = "Something went wrong. Check your connection and try again."
)

var errMissingCache = errors.New("session: waypoint cache is required")

// Draft carries the modal's transient input fields. It is cleared on every
// transition back to the closed mode.
type Draft struct {
	Title       string
	Description string
}

// EditorConfig describes the editor dependencies. The narrator is optional.
type EditorConfig struct {
	Cache    *Cache
	Narrator *narration.Controller
	Logger   *zap.Logger
}

// Editor arbitrates the create/edit modal: its mode, draft validation, the
// two-step delete confirmation, and the mutations it drives on the waypoint
// cache. A failed submit keeps the modal open with the draft intact so the
// user can retry without re-entering data. Every entry into the closed mode
// stops narration so speech never outlives the editing session.
type Editor struct {
	cache    *Cache
	narrator *narration.Controller
	logger   *zap.Logger

	mode            Mode
	coordinate      tours.Coordinate
	stopID          tours.StopID
	draft           Draft
	message         string
	deleteRequested bool
	busy            bool
}

// NewEditor constructs a closed editor bound to the cache.
func NewEditor(cfg EditorConfig) (*Editor, error) {
	if cfg.Cache == nil {
		return nil, errMissingCache
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{cache: cfg.Cache, narrator: cfg.Narrator, logger: logger, mode: ModeClosed}, nil
}

// Mode returns the current modal mode.
func (e *Editor) Mode() Mode {
	return e.mode
}

// Draft returns the current transient input fields.
func (e *Editor) Draft() Draft {
	return e.draft
}

// Coordinate returns the captured long-press coordinate while creating.
func (e *Editor) Coordinate() tours.Coordinate {
	return e.coordinate
}

// StopID returns the stop under edit while editing.
func (e *Editor) StopID() tours.StopID {
	return e.stopID
}

// Message returns the user-facing failure message from the last action, or
// "" when the last action succeeded.
func (e *Editor) Message() string {
	return e.message
}

// Busy reports whether a submit or delete is outstanding. The UI must
// disable the triggering controls while true; the editor also ignores
// duplicate submissions itself.
func (e *Editor) Busy() bool {
	return e.busy
}

// DeleteRequested reports whether the confirmation dialog is pending.
func (e *Editor) DeleteRequested() bool {
	return e.deleteRequested
}

// BeginCreate opens the modal in creating mode at the long-pressed
// coordinate, with a cleared draft. Ignored while the modal is already open.
func (e *Editor) BeginCreate(coordinate tours.Coordinate) {
	if e.mode != ModeClosed {
		return
	}
	if err := coordinate.Validate(); err != nil {
		e.logger.Warn("rejected long-press coordinate", zap.Error(err))
		return
	}
	e.mode = ModeCreating
	e.coordinate = coordinate
	e.stopID = ""
	e.draft = Draft{}
	e.message = ""
	e.deleteRequested = false
}

// BeginEdit opens the modal in editing mode for an activated marker, with
// the draft pre-filled from the stop. Ignored while the modal is already
// open.
func (e *Editor) BeginEdit(stop tours.Stop) {
	if e.mode != ModeClosed {
		return
	}
	id, err := tours.NewStopID(stop.ID)
	if err != nil {
		e.logger.Warn("rejected marker activation", zap.Error(err))
		return
	}
	e.mode = ModeEditing
	e.stopID = id
	e.coordinate = stop.Coordinate()
	e.draft = Draft{Title: stop.Title, Description: stop.Description}
	e.message = ""
	e.deleteRequested = false
}

// SetTitle updates the draft title while the modal is open.
func (e *Editor) SetTitle(title string) {
	if e.mode == ModeClosed {
		return
	}
	e.draft.Title = title
}

// SetDescription updates the draft description while the modal is open.
func (e *Editor) SetDescription(description string) {
	if e.mode == ModeClosed {
		return
	}
	e.draft.Description = description
}

// Submit persists the draft. A blank or whitespace-only title is a silent
// no-op: no transition, no cache call, no message. On success the modal
// closes; on failure it stays in its current mode with the draft intact and
// a classified message attached.
func (e *Editor) Submit(ctx context.Context) error {
	if e.busy || e.mode == ModeClosed {
		return nil
	}
	if strings.TrimSpace(e.draft.Title) == "" {
		return nil
	}

	e.busy = true
	defer func() { e.busy = false }()

	switch e.mode {
	case ModeCreating:
		_, err := e.cache.Create(ctx, e.draft.Title, e.draft.Description, e.coordinate)
		if err != nil {
			e.message = failureMessage(err, MessageCannotModify)
			return err
		}
	case ModeEditing:
		_, err := e.cache.Update(ctx, e.stopID, tours.StopPatch{
			Title:       e.draft.Title,
			Description: e.draft.Description,
		})
		if err != nil {
			e.message = failureMessage(err, MessageCannotModify)
			return err
		}
	}

	e.close()
	return nil
}

// RequestDelete opens the delete confirmation while editing.
func (e *Editor) RequestDelete() {
	if e.mode != ModeEditing {
		return
	}
	e.deleteRequested = true
}

// CancelDelete dismisses a pending delete confirmation without touching the
// modal or the draft.
func (e *Editor) CancelDelete() {
	e.deleteRequested = false
}

// ConfirmDelete removes the stop under edit after the confirmation step. On
// success the modal closes; on failure it stays in editing mode with a
// classified message attached.
func (e *Editor) ConfirmDelete(ctx context.Context) error {
	if e.busy || e.mode != ModeEditing || !e.deleteRequested {
		return nil
	}

	e.busy = true
	defer func() { e.busy = false }()
	e.deleteRequested = false

	if err := e.cache.Remove(ctx, e.stopID); err != nil {
		e.message = failureMessage(err, MessageCannotDelete)
		return err
	}

	e.close()
	return nil
}

// Cancel closes the modal from any state, discarding the draft. Narration is
// stopped even when the modal was already closed, covering screen blur.
func (e *Editor) Cancel() {
	e.close()
}

// PlayNarration speaks the draft title and description while the modal is
// open.
func (e *Editor) PlayNarration() {
	if e.mode == ModeClosed || e.narrator == nil {
		return
	}
	e.narrator.Play(narrationText(e.draft))
}

// PauseOrResumeNarration toggles playback while the modal is open.
func (e *Editor) PauseOrResumeNarration() {
	if e.mode == ModeClosed || e.narrator == nil {
		return
	}
	e.narrator.PauseOrResume()
}

// StopNarration halts playback without touching the modal.
func (e *Editor) StopNarration() {
	if e.narrator != nil {
		e.narrator.Stop()
	}
}

func (e *Editor) close() {
	e.mode = ModeClosed
	e.coordinate = tours.Coordinate{}
	e.stopID = ""
	e.draft = Draft{}
	e.message = ""
	e.deleteRequested = false
	if e.narrator != nil {
		e.narrator.Stop()
	}
}

func failureMessage(err error, permissionMessage string) string {
	if gateway.Classify(err) == gateway.FailurePermissionDenied {
		return permissionMessage
	}
	return MessageConnectivity
}

// narrationNoDescription is spoken in place of an empty description, matching
// the Spanish default narration language.
const narrationNoDescription = "Sin descripción"

func narrationText(draft Draft) string {
	title := strings.TrimSpace(draft.Title)
	description := strings.TrimSpace(draft.Description)
	if description == "" {
		description = narrationNoDescription
	}
	return title + ". " + description
}
