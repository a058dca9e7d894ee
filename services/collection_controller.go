package services

import (
	"context"
	"errors"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/sirupsen/logrus"
)

// ErrSuperseded is returned by a load whose response arrived after a newer
// load was issued. Its result was discarded.
var ErrSuperseded = errors.New("load superseded by a newer request")

// MessageLoadFailed is shown when a page cannot be fetched
const MessageLoadFailed = "Failed to load IPOs"

// CollectionState is a copy of the controller's view of the catalog
type CollectionState struct {
	Items         []models.Company `json:"items"`
	PageNumber    int              `json:"page"`
	TotalPages    int              `json:"total_pages"`
	TotalCount    int              `json:"total_count"`
	FetchInFlight bool             `json:"fetch_in_flight"`
}

// CollectionController owns the displayed page of companies. Loads may
// overlap; the most recently issued one wins regardless of the order in
// which responses arrive, and older requests are cancelled.
type CollectionController struct {
	gateway       Gateway
	tracker       *OperationTracker
	notifications *NotificationCenter
	logger        *logrus.Entry

	mutex        sync.Mutex
	items        []models.Company
	pageNumber   int
	totalPages   int
	totalCount   int
	latestSeq    uint64
	cancelLatest context.CancelFunc
}

// NewCollectionController creates a controller showing an empty page 1
func NewCollectionController(gateway Gateway, tracker *OperationTracker, notifications *NotificationCenter) *CollectionController {
	return &CollectionController{
		gateway:       gateway,
		tracker:       tracker,
		notifications: notifications,
		logger:        logrus.WithField("component", "CollectionController"),
		pageNumber:    1,
		totalPages:    1,
	}
}

// Load fetches page and, if no newer load was issued meanwhile, replaces
// the displayed items. On failure the previous page stays visible.
func (c *CollectionController) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mutex.Lock()
	c.latestSeq++
	seq := c.latestSeq
	if c.cancelLatest != nil {
		c.cancelLatest()
	}
	c.cancelLatest = cancel
	c.mutex.Unlock()

	done := c.tracker.BeginFetch()
	defer done()

	logger := c.logger.WithFields(logrus.Fields{"page": page, "seq": seq})
	logger.Debug("Loading page")

	result, err := c.gateway.FetchPage(loadCtx, page)

	c.mutex.Lock()
	if seq != c.latestSeq {
		c.mutex.Unlock()
		logger.Debug("Discarding superseded page response")
		return ErrSuperseded
	}
	c.cancelLatest = nil

	if err != nil {
		c.mutex.Unlock()
		logger.WithError(err).Warn("Failed to load page")
		c.notifications.ShowError(MessageLoadFailed)
		return err
	}

	c.items = models.FilterDisplayable(result.Items)
	c.pageNumber = page
	c.totalCount = result.TotalCount
	c.totalPages = models.TotalPages(result.TotalCount)
	c.mutex.Unlock()

	logger.WithFields(logrus.Fields{
		"items":       len(result.Items),
		"total_count": result.TotalCount,
	}).Debug("Loaded page")
	return nil
}

// Refresh reloads the current page
func (c *CollectionController) Refresh(ctx context.Context) error {
	return c.Load(ctx, c.PageNumber())
}

// PageNumber returns the displayed page
func (c *CollectionController) PageNumber() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.pageNumber
}

// Snapshot copies the current state
func (c *CollectionController) Snapshot() CollectionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return CollectionState{
		Items:         append([]models.Company(nil), c.items...),
		PageNumber:    c.pageNumber,
		TotalPages:    c.totalPages,
		TotalCount:    c.totalCount,
		FetchInFlight: c.tracker.FetchInFlight(),
	}
}
