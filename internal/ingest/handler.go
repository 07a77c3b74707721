package ingest

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	httperr "github.com/pricewize-lab/pricewize/internal/core/errors"
)

const (
	headerScrapeToken = "X-Scrape-Token"

	msgInvalidToken = "Missing or invalid scrape token"
	msgInvalidJSON  = "Invalid JSON body"
	msgRunLogFailed = "Failed to record scrape run"
	msgIngestFailed = "Failed to persist scraped listings"
	msgNoQuery      = "No query given and no default query configured"
	msgUnknownScope = "Unknown platform scope"
)

// triggerRequest is the optional POST /v1/scrape body.
type triggerRequest struct {
	Query    string `json:"query"`
	Platform string `json:"platform"`
}

// triggerResponse mirrors the finalized run log entry.
type triggerResponse struct {
	RunID        string   `json:"run_id"`
	Status       string   `json:"status"`
	ItemsScraped int      `json:"items_scraped"`
	ItemsAdded   int      `json:"items_added"`
	ItemsUpdated int      `json:"items_updated"`
	ItemsSkipped int      `json:"items_skipped"`
	DurationMs   int64    `json:"duration_ms"`
	Errors       []string `json:"errors"`
}

// TriggerHandler runs one scrape-and-ingest cycle synchronously. Adapter
// failures are reported inside a 200 response; only a store failure is a 500.
func (s *Service) TriggerHandler(c *gin.Context) {
	if !s.authorized(c) {
		c.JSON(http.StatusUnauthorized, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnauthorizedError,
			Message:   msgInvalidToken,
		})
		return
	}

	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidJsonError,
				Message:   msgInvalidJSON,
			})
			return
		}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = s.defaultQuery
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   msgNoQuery,
		})
		return
	}

	scope := strings.ToLower(strings.TrimSpace(req.Platform))
	if scope == "" {
		scope = "all"
	}

	ctx := c.Request.Context()
	entry := &v1.RunLog{
		ID:        uuid.NewString(),
		Platform:  scope,
		Status:    v1.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runLogs.CreateRunLog(ctx, entry); err != nil {
		slog.Error("[Trigger] Failed to create run log", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreError,
			Message:   msgRunLogFailed,
		})
		return
	}

	slog.Info("[Trigger] Scrape run started",
		"run_id", entry.ID,
		"query", query,
		"platform", scope,
	)

	result := s.runner.RunAll(ctx, query, scope)
	if scope != "all" && len(result.Platforms) == 0 {
		s.finalize(c, entry, []string{"unknown platform: " + scope}, Summary{}, 0, v1.RunStatusError)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   msgUnknownScope,
			Details:   map[string]interface{}{"platform": scope},
		})
		return
	}

	summary, ingestErr := s.engine.Ingest(ctx, result.Listings)
	runErrors := result.FailedPlatforms()
	if ingestErr != nil {
		slog.Error("[Trigger] Ingestion aborted", "run_id", entry.ID, "error", ingestErr)
		runErrors = append(runErrors, "ingest: "+ingestErr.Error())
	}

	status := runStatus(result, summary, ingestErr != nil)
	s.finalize(c, entry, runErrors, summary, len(result.Listings), status)

	if ingestErr != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreError,
			Message:   msgIngestFailed,
		})
		return
	}

	c.JSON(http.StatusOK, triggerResponse{
		RunID:        entry.ID,
		Status:       string(entry.Status),
		ItemsScraped: entry.ItemsScraped,
		ItemsAdded:   entry.ItemsAdded,
		ItemsUpdated: entry.ItemsUpdated,
		ItemsSkipped: entry.ItemsSkipped,
		DurationMs:   entry.DurationMs,
		Errors:       runErrors,
	})
}

// finalize stamps the run log entry and persists the terminal state. A finish
// failure is logged, never surfaced: the run itself already happened.
func (s *Service) finalize(c *gin.Context, entry *v1.RunLog, runErrors []string, summary Summary, scraped int, status v1.RunStatus) {
	entry.Status = status
	entry.ItemsScraped = scraped
	entry.ItemsAdded = summary.Added
	entry.ItemsUpdated = summary.Updated
	entry.ItemsSkipped = summary.Skipped
	entry.Errors = runErrors
	entry.FinishedAt = time.Now().UTC()
	entry.DurationMs = entry.FinishedAt.Sub(entry.StartedAt).Milliseconds()

	if err := s.runLogs.FinishRunLog(c.Request.Context(), entry); err != nil {
		slog.Error("[Trigger] Failed to finalize run log", "run_id", entry.ID, "error", err)
	}

	slog.Info("[Trigger] Scrape run finished",
		"run_id", entry.ID,
		"status", entry.Status,
		"scraped", entry.ItemsScraped,
		"added", entry.ItemsAdded,
		"updated", entry.ItemsUpdated,
		"skipped", entry.ItemsSkipped,
		"duration_ms", entry.DurationMs,
	)
}

// authorized compares the shared-secret header in constant time. An empty
// configured token disables the trigger entirely.
func (s *Service) authorized(c *gin.Context) bool {
	if s.triggerToken == "" {
		return false
	}
	given := c.GetHeader(headerScrapeToken)
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.triggerToken)) == 1
}
