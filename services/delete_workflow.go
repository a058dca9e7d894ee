package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

const (
	MessageDeleteSucceeded = "IPO deleted successfully!"
	MessageDeleteFailed    = "Failed to delete IPO"
)

// DeleteWorkflow deletes rounds. Deletes of different rounds run
// independently; only the round being deleted is marked busy.
type DeleteWorkflow struct {
	gateway       Gateway
	collection    *CollectionController
	tracker       *OperationTracker
	notifications *NotificationCenter
	logger        *logrus.Entry
}

// NewDeleteWorkflow creates a delete workflow
func NewDeleteWorkflow(gateway Gateway, collection *CollectionController, tracker *OperationTracker, notifications *NotificationCenter) *DeleteWorkflow {
	return &DeleteWorkflow{
		gateway:       gateway,
		collection:    collection,
		tracker:       tracker,
		notifications: notifications,
		logger:        logrus.WithField("component", "DeleteWorkflow"),
	}
}

// Delete removes roundID and refreshes the collection on success
func (w *DeleteWorkflow) Delete(ctx context.Context, roundID int64) error {
	if !w.tracker.TryBeginDelete(roundID) {
		return ErrOperationInFlight
	}
	logger := w.logger.WithField("round_id", roundID)

	err := w.gateway.DeleteRound(ctx, roundID)
	// the row is interactive again before the refresh starts
	w.tracker.EndDelete(roundID)
	if err != nil {
		logger.WithError(err).Warn("Failed to delete IPO")
		w.notifications.ShowError(MessageDeleteFailed)
		return err
	}

	w.notifications.ShowSuccess(MessageDeleteSucceeded)
	logger.Info("Deleted IPO")

	if err := w.collection.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		logger.WithError(err).Warn("Refresh after delete failed")
	}
	return nil
}
