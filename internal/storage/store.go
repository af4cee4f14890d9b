package storage

import (
	"context"
	"regexp"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/rs/zerolog"
)

// Store persists the append-only streams. Callers serialize appends per
// agent; implementations only guarantee a single append is not torn.
type Store interface {
	AppendAgentEvent(ctx context.Context, event types.AgentEvent) error
	AgentEvents(ctx context.Context, agent, date string) ([]types.AgentEvent, error)
	AppendWrapUp(ctx context.Context, wrapUp types.WrapUp) error
	WrapUps(ctx context.Context, agent, date string) ([]types.WrapUp, error)
	AppendSupervisorAction(ctx context.Context, action types.SupervisorAction) error
	SupervisorActions(ctx context.Context, date string) ([]types.SupervisorAction, error)
}

var agentKeyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@+\-]*$`)

// ValidAgentKey rejects agent ids that cannot safely name a stream
func ValidAgentKey(agent string) error {
	if !agentKeyRe.MatchString(agent) || len(agent) > 64 {
		return apperr.Validation("agent", "invalid agent id %q", agent)
	}
	return nil
}

// ValidDate rejects anything but a YYYY-MM-DD stream date
func ValidDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return apperr.Validation("date", "invalid date %q", date)
	}
	return nil
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "storage").Logger()

	if cfg.Dynamo() {
		return NewDynamoDBStore(ctx, cfg, logger)
	}
	logger.Info().Str("dir", cfg.DataDir).Msg("using file store")
	return NewFileStore(cfg.DataDir, logger)
}
