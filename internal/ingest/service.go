package ingest

import (
	"context"

	"github.com/gin-gonic/gin"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
	"github.com/pricewize-lab/pricewize/internal/scrape"
)

// Runner executes one orchestration run. Satisfied by *scrape.Orchestrator.
type Runner interface {
	RunAll(ctx context.Context, query, platformScope string) scrape.RunResult
}

// Service exposes the scrape trigger endpoint: orchestrate adapters, ingest
// the collected listings, and record the run in the audit log.
type Service struct {
	runner       Runner
	engine       *Engine
	runLogs      storage.RunLogStore
	triggerToken string
	defaultQuery string
}

func NewService(runner Runner, engine *Engine, runLogs storage.RunLogStore, triggerToken, defaultQuery string) *Service {
	if runner == nil {
		panic("ingest: runner must not be nil")
	}
	if engine == nil {
		panic("ingest: engine must not be nil")
	}
	if runLogs == nil {
		panic("ingest: run log store must not be nil")
	}
	return &Service{
		runner:       runner,
		engine:       engine,
		runLogs:      runLogs,
		triggerToken: triggerToken,
		defaultQuery: defaultQuery,
	}
}

// RegisterRoutes registers the trigger route.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/scrape", s.TriggerHandler)
}

// runStatus derives the final run log status from the per-platform outcomes
// and the ingestion result. A run that produced a summary is never marked
// error, even when every adapter failed; error is reserved for runs aborted
// by an ingestion failure. A clean run that added or updated nothing is
// partial.
func runStatus(result scrape.RunResult, summary Summary, ingestFailed bool) v1.RunStatus {
	switch {
	case ingestFailed:
		return v1.RunStatusError
	case len(result.FailedPlatforms()) > 0:
		return v1.RunStatusPartial
	case summary.Added+summary.Updated == 0:
		return v1.RunStatusPartial
	default:
		return v1.RunStatusSuccess
	}
}
