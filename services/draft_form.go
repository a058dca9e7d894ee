package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

const (
	MessageCreateSucceeded = "IPO registered successfully!"
	MessageCreateFailed    = "Failed to register IPO"
)

// ErrOperationInFlight rejects a second identical operation while the first
// is still outstanding
var ErrOperationInFlight = errors.New("operation already in flight")

// DraftForm is the registration form. The draft is replaced, never mutated,
// so values handed out by Draft stay valid after later edits.
type DraftForm struct {
	gateway       Gateway
	collection    *CollectionController
	tracker       *OperationTracker
	notifications *NotificationCenter
	logger        *logrus.Entry

	mutex sync.Mutex
	draft models.DraftCompany
	open  bool
}

// NewDraftForm creates a closed form holding the empty template
func NewDraftForm(gateway Gateway, collection *CollectionController, tracker *OperationTracker, notifications *NotificationCenter) *DraftForm {
	return &DraftForm{
		gateway:       gateway,
		collection:    collection,
		tracker:       tracker,
		notifications: notifications,
		logger:        logrus.WithField("component", "DraftForm"),
		draft:         models.NewDraftCompany(),
	}
}

// Open shows the form
func (f *DraftForm) Open() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.open = true
}

// Close hides the form and discards the draft
func (f *DraftForm) Close() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.open = false
	f.draft = models.NewDraftCompany()
}

// Toggle flips the form between open and closed and returns the new state
func (f *DraftForm) Toggle() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.open = !f.open
	if !f.open {
		f.draft = models.NewDraftCompany()
	}
	return f.open
}

// IsOpen reports whether the form is shown
func (f *DraftForm) IsOpen() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.open
}

// ToggleLabel is the caption of the button that opens or closes the form
func (f *DraftForm) ToggleLabel() string {
	if f.IsOpen() {
		return "Close Form"
	}
	return "Register IPO"
}

// Draft returns the current draft value
func (f *DraftForm) Draft() models.DraftCompany {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.draft
}

// Update replaces one field of the draft
func (f *DraftForm) Update(key models.FieldKey, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.tracker.CreateInFlight() {
		return ErrOperationInFlight
	}
	next, err := f.draft.With(key, value)
	if err != nil {
		return err
	}
	f.draft = next
	return nil
}

// Prefill fills blank fields from values obtained elsewhere, such as an
// imported detail page
func (f *DraftForm) Prefill(values models.DraftCompany) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.tracker.CreateInFlight() {
		return ErrOperationInFlight
	}
	f.draft = f.draft.Merge(values)
	return nil
}

// Submit validates and posts the draft. On success the form is reset and
// closed and the collection is refreshed once; on failure the draft is kept.
// Update and Prefill are rejected until the create settles, so the reset
// never discards an edit.
func (f *DraftForm) Submit(ctx context.Context) error {
	if !f.tracker.TryBeginCreate() {
		return ErrOperationInFlight
	}

	draft := f.Draft()
	logger := f.logger.WithField("company_name", draft.CompanyName)

	if missing := draft.MissingFields(); len(missing) > 0 {
		fields := make(shared.FieldErrors, len(missing))
		names := make([]string, 0, len(missing))
		for _, key := range missing {
			fields[string(key)] = []string{"This field is required."}
			names = append(names, string(key))
		}
		err := shared.NewValidationError("create_company", 0, fields)
		f.tracker.EndCreate()
		f.notifications.ShowError(fmt.Sprintf("Missing required fields: %s", strings.Join(names, ", ")))
		logger.WithField("missing", names).Debug("Draft failed local validation")
		return err
	}

	_, err := f.gateway.CreateCompany(ctx, draft)
	if err != nil {
		f.tracker.EndCreate()
		logger.WithError(err).Warn("Failed to register IPO")
		f.notifications.ShowError(MessageCreateFailed)
		return err
	}

	f.mutex.Lock()
	f.draft = models.NewDraftCompany()
	f.open = false
	f.mutex.Unlock()
	f.tracker.EndCreate()

	f.notifications.ShowSuccess(MessageCreateSucceeded)
	logger.Info("Registered IPO")

	if err := f.collection.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		logger.WithError(err).Warn("Refresh after create failed")
	}
	return nil
}
