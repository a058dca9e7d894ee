package services

import (
	"context"
	"errors"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/sirupsen/logrus"
)

const (
	MessageUpdateSucceeded = "IPO updated successfully!"
	MessageUpdateFailed    = "Failed to update IPO"
)

var (
	// ErrEditInProgress rejects BeginEdit while another round is open
	ErrEditInProgress = errors.New("another round is being edited")
	// ErrNoEditSession rejects edits and saves when nothing is being edited
	ErrNoEditSession = errors.New("no round is being edited")
)

// EditState is the phase of the edit workflow
type EditState string

const (
	EditIdle    EditState = "idle"
	EditEditing EditState = "editing"
	EditSaving  EditState = "saving"
)

// EditWorkflow edits one round at a time: Idle, then Editing with a working
// buffer, then Saving. A failed save returns to Editing with the buffer intact.
type EditWorkflow struct {
	gateway       Gateway
	collection    *CollectionController
	tracker       *OperationTracker
	notifications *NotificationCenter
	logger        *logrus.Entry

	mutex  sync.Mutex
	state  EditState
	buffer models.EditBuffer
}

// NewEditWorkflow creates an idle workflow
func NewEditWorkflow(gateway Gateway, collection *CollectionController, tracker *OperationTracker, notifications *NotificationCenter) *EditWorkflow {
	return &EditWorkflow{
		gateway:       gateway,
		collection:    collection,
		tracker:       tracker,
		notifications: notifications,
		logger:        logrus.WithField("component", "EditWorkflow"),
		state:         EditIdle,
	}
}

// BeginEdit opens round for editing. Switching rounds requires Cancel or a
// successful Save first.
func (w *EditWorkflow) BeginEdit(round models.IPORound) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.state != EditIdle {
		return ErrEditInProgress
	}
	w.buffer = models.NewEditBuffer(round)
	w.state = EditEditing
	w.logger.WithField("round_id", round.ID).Debug("Editing round")
	return nil
}

// EditField replaces one field of the buffer
func (w *EditWorkflow) EditField(key models.FieldKey, value string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.state != EditEditing {
		if w.state == EditSaving {
			return ErrOperationInFlight
		}
		return ErrNoEditSession
	}

	next, err := w.buffer.With(key, value)
	if err != nil {
		return err
	}
	w.buffer = next
	return nil
}

// Cancel abandons the edit without contacting the server
func (w *EditWorkflow) Cancel() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	switch w.state {
	case EditSaving:
		return ErrOperationInFlight
	case EditIdle:
		return ErrNoEditSession
	}
	w.state = EditIdle
	w.buffer = models.EditBuffer{}
	return nil
}

// State returns the phase and, outside Idle, the buffer
func (w *EditWorkflow) State() (EditState, models.EditBuffer) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.state, w.buffer
}

// EditingRound returns the id of the round being edited
func (w *EditWorkflow) EditingRound() (int64, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state == EditIdle {
		return 0, false
	}
	return w.buffer.RoundID, true
}

// Save sends the buffer. A second Save while the first is outstanding is
// rejected with ErrOperationInFlight.
func (w *EditWorkflow) Save(ctx context.Context) error {
	w.mutex.Lock()
	switch w.state {
	case EditIdle:
		w.mutex.Unlock()
		return ErrNoEditSession
	case EditSaving:
		w.mutex.Unlock()
		return ErrOperationInFlight
	}
	buffer := w.buffer
	if !w.tracker.TryBeginUpdate(buffer.RoundID) {
		w.mutex.Unlock()
		return ErrOperationInFlight
	}
	w.state = EditSaving
	w.mutex.Unlock()

	logger := w.logger.WithField("round_id", buffer.RoundID)

	_, err := w.gateway.UpdateRound(ctx, buffer.RoundID, buffer)
	w.tracker.EndUpdate(buffer.RoundID)

	w.mutex.Lock()
	if err != nil {
		w.state = EditEditing
		w.mutex.Unlock()
		logger.WithError(err).Warn("Failed to update IPO")
		w.notifications.ShowError(MessageUpdateFailed)
		return err
	}
	w.state = EditIdle
	w.buffer = models.EditBuffer{}
	w.mutex.Unlock()

	w.notifications.ShowSuccess(MessageUpdateSucceeded)
	logger.Info("Updated IPO")

	if err := w.collection.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		logger.WithError(err).Warn("Refresh after update failed")
	}
	return nil
}
