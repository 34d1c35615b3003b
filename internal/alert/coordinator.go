// internal/alert/coordinator.go
package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"
	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/common/metrics"
	"catalyst-alerts/internal/models"
)

// Sweep outcomes.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded" // some searches errored, the rest completed
	StatusFailed   = "failed"   // nothing completed
)

// SearchSource lists active searches and advances their checkpoints.
type SearchSource interface {
	ListActive(ctx context.Context) ([]*models.SavedSearch, error)
	UpdateCheckpoint(ctx context.Context, searchID string, sweepStart time.Time, matchedIDs []string) error
}

// MatchScanner finds fresh candidates for one search.
type MatchScanner interface {
	Scan(ctx context.Context, search *models.SavedSearch) ([]*models.Catalyst, error)
}

// MatchDispatcher delivers one candidate match.
type MatchDispatcher interface {
	Dispatch(ctx context.Context, search *models.SavedSearch, item *models.Catalyst, content *models.AlertContent) (*Result, error)
}

// RunStats is the report for one sweep.
type RunStats struct {
	SearchesChecked   int       `json:"searches_checked"`
	MatchesFound      int       `json:"matches_found"`
	NotificationsSent int       `json:"notifications_sent"`
	Errors            int       `json:"errors"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	Status            string    `json:"status"`
}

// Coordinator runs sweeps: it fans active searches out to a bounded worker
// pool, isolates per-search failures, and aggregates the run report. A failure
// to list the searches or a lost store aborts the sweep; everything else
// degrades it.
type Coordinator struct {
	searches    SearchSource
	scanner     MatchScanner
	dispatcher  MatchDispatcher
	baseURL     string
	concurrency int
	logger      logger.Logger
}

func NewCoordinator(
	searches SearchSource,
	scanner MatchScanner,
	dispatcher MatchDispatcher,
	baseURL string,
	concurrency int,
	log logger.Logger,
) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		searches:    searches,
		scanner:     scanner,
		dispatcher:  dispatcher,
		baseURL:     baseURL,
		concurrency: concurrency,
		logger:      log,
	}
}

// RunSweep evaluates every active saved search once and returns the report.
func (c *Coordinator) RunSweep(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{StartedAt: time.Now().UTC()}

	searches, err := c.searches.ListActive(ctx)
	if err != nil {
		stats.Status = StatusFailed
		stats.Errors = 1
		stats.CompletedAt = time.Now().UTC()
		metrics.SweepsTotal.WithLabelValues(StatusFailed).Inc()
		return stats, err
	}

	c.logger.Info("sweep started", map[string]interface{}{
		"activeSearches": len(searches),
		"concurrency":    c.concurrency,
	})

	// Storage loss is fatal for the whole sweep: once a worker reports it,
	// cancel the context so queued searches stop instead of piling on errors.
	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu             sync.Mutex
		wg             sync.WaitGroup
		sem            = make(chan struct{}, c.concurrency)
		failedSearches int
		fatalErr       error
	)

	for _, search := range searches {
		wg.Add(1)
		sem <- struct{}{}
		go func(search *models.SavedSearch) {
			defer wg.Done()
			defer func() { <-sem }()

			if sweepCtx.Err() != nil {
				return
			}

			outcome := c.sweepSearch(sweepCtx, search)

			mu.Lock()
			stats.SearchesChecked++
			stats.MatchesFound += outcome.matches
			stats.NotificationsSent += outcome.sent
			stats.Errors += outcome.errors
			if outcome.failed {
				failedSearches++
			}
			if outcome.fatalErr != nil && fatalErr == nil {
				fatalErr = outcome.fatalErr
				cancel()
			}
			mu.Unlock()
		}(search)
	}
	wg.Wait()

	stats.CompletedAt = time.Now().UTC()
	switch {
	case fatalErr != nil:
		stats.Status = StatusFailed
	case stats.Errors == 0:
		stats.Status = StatusOK
	case len(searches) > 0 && failedSearches == len(searches):
		stats.Status = StatusFailed
	default:
		stats.Status = StatusDegraded
	}

	metrics.SweepsTotal.WithLabelValues(stats.Status).Inc()
	metrics.SweepDuration.Observe(stats.CompletedAt.Sub(stats.StartedAt).Seconds())

	c.logger.Info("sweep completed", map[string]interface{}{
		"status":            stats.Status,
		"searchesChecked":   stats.SearchesChecked,
		"matchesFound":      stats.MatchesFound,
		"notificationsSent": stats.NotificationsSent,
		"errors":            stats.Errors,
		"durationMs":        stats.CompletedAt.Sub(stats.StartedAt).Milliseconds(),
	})

	return stats, fatalErr
}

type searchOutcome struct {
	matches  int
	sent     int
	errors   int
	failed   bool  // the search produced nothing but errors
	fatalErr error // storage loss, aborts the sweep
}

func (c *Coordinator) sweepSearch(ctx context.Context, search *models.SavedSearch) searchOutcome {
	var outcome searchOutcome

	// Captured before scanning so items landing mid-sweep are re-examined next
	// time; the ledger keeps the overlap from double-sending.
	sweepStart := time.Now().UTC()

	metrics.SearchesChecked.Inc()

	candidates, err := c.scanner.Scan(ctx, search)
	if err != nil {
		c.recordSearchError(search.ID, "scan failed", err)
		outcome.errors++
		outcome.failed = true
		if apperrors.IsStorageUnavailable(err) {
			outcome.fatalErr = err
		}
		return outcome
	}

	outcome.matches = len(candidates)
	metrics.MatchesFound.Add(float64(len(candidates)))

	matchedIDs := make([]string, 0, len(candidates))
	for _, item := range candidates {
		matchedIDs = append(matchedIDs, item.ID)

		content := BuildAlertContent(search, item, c.baseURL, time.Now().UTC())
		res, err := c.dispatcher.Dispatch(ctx, search, item, content)
		if err != nil {
			c.recordSearchError(search.ID, "dispatch failed", err)
			outcome.errors++
			if apperrors.IsStorageUnavailable(err) {
				outcome.fatalErr = err
				return outcome
			}
			continue
		}
		if len(res.Sent) > 0 {
			outcome.sent++
		}
	}

	if err := c.searches.UpdateCheckpoint(ctx, search.ID, sweepStart, matchedIDs); err != nil {
		c.recordSearchError(search.ID, "checkpoint update failed", err)
		outcome.errors++
		if apperrors.IsStorageUnavailable(err) {
			outcome.fatalErr = err
		}
	}

	return outcome
}

func (c *Coordinator) recordSearchError(searchID, msg string, err error) {
	code := "UNKNOWN"
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		code = string(stdErr.Code)
	}
	metrics.SearchErrors.WithLabelValues(code).Inc()
	c.logger.Error(msg, map[string]interface{}{
		"searchId": searchID,
		"code":     code,
		"error":    err.Error(),
	})
}
