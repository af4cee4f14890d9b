// Package wrapup records post-call dispositions against a fixed code catalog.
package wrapup

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dennisdiepolder/callctl/internal/apperr"
	"github.com/dennisdiepolder/callctl/internal/ledger"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// MaxNotesLength bounds free-text notes
const MaxNotesLength = 2000

// Code is one catalog entry
type Code struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Catalog is the set of accepted wrap-up codes
type Catalog struct {
	codes map[string]Code
}

// DefaultCatalog is used when no catalog file is configured
func DefaultCatalog() *Catalog {
	return NewCatalog([]Code{
		{Code: "resolved", Label: "Resolved"},
		{Code: "callback", Label: "Callback required"},
		{Code: "escalated", Label: "Escalated"},
		{Code: "sale", Label: "Sale"},
		{Code: "no-sale", Label: "No sale"},
		{Code: "wrong-number", Label: "Wrong number"},
		{Code: "voicemail", Label: "Left voicemail"},
		{Code: "other", Label: "Other"},
	})
}

// NewCatalog builds a catalog from codes; blank codes are ignored
func NewCatalog(codes []Code) *Catalog {
	c := &Catalog{codes: make(map[string]Code, len(codes))}
	for _, code := range codes {
		if code.Code == "" {
			continue
		}
		c.codes[code.Code] = code
	}
	return c
}

// LoadCatalog reads a YAML catalog file of the form
//
//	codes:
//	  - code: resolved
//	    label: Resolved
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wrap-up catalog: %w", err)
	}
	var file struct {
		Codes []Code `yaml:"codes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wrap-up catalog: %w", err)
	}
	c := NewCatalog(file.Codes)
	if len(c.codes) == 0 {
		return nil, fmt.Errorf("wrap-up catalog %s has no codes", path)
	}
	return c, nil
}

// Has reports whether code is in the catalog
func (c *Catalog) Has(code string) bool {
	_, ok := c.codes[code]
	return ok
}

// Codes returns the catalog sorted by code
func (c *Catalog) Codes() []Code {
	out := make([]Code, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Recorder appends wrap-ups. Submissions for the same call are never merged.
type Recorder struct {
	catalog *Catalog
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRecorder creates a recorder; a nil catalog means DefaultCatalog
func NewRecorder(catalog *Catalog, l *ledger.Ledger, m *metrics.Metrics, logger zerolog.Logger) *Recorder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Recorder{
		catalog: catalog,
		ledger:  l,
		metrics: m,
		logger:  logger.With().Str("component", "wrapup").Logger(),
	}
}

// Catalog returns the accepted codes
func (r *Recorder) Catalog() *Catalog {
	return r.catalog
}

// Submit validates and appends one wrap-up
func (r *Recorder) Submit(ctx context.Context, agent, code, notes, callID string) (types.WrapUp, error) {
	const op = "submit wrap-up"
	if !r.catalog.Has(code) {
		return types.WrapUp{}, apperr.Validation(op, "unknown wrap-up code %q", code)
	}
	if len(notes) > MaxNotesLength {
		return types.WrapUp{}, apperr.Validation(op, "notes exceed %d characters", MaxNotesLength)
	}

	var wrapUp types.WrapUp
	err := r.ledger.WithAgentLock(ctx, agent, func(ts time.Time) error {
		wrapUp = types.WrapUp{
			ID:        uuid.NewString(),
			Agent:     agent,
			CallID:    callID,
			Code:      code,
			Notes:     notes,
			Timestamp: ts,
		}
		if err := r.ledger.Store().AppendWrapUp(ctx, wrapUp); err != nil {
			return fmt.Errorf("failed to append wrap-up: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.WrapUp{}, err
	}

	r.metrics.RecordWrapUp(code)
	r.logger.Info().
		Str("agent", agent).
		Str("call_id", callID).
		Str("code", code).
		Msg("wrap-up recorded")
	return wrapUp, nil
}

// List returns the agent's wrap-ups for date
func (r *Recorder) List(ctx context.Context, agent, date string) ([]types.WrapUp, error) {
	if err := storage.ValidAgentKey(agent); err != nil {
		return nil, err
	}
	if err := storage.ValidDate(date); err != nil {
		return nil, err
	}
	wrapUps, err := r.ledger.Store().WrapUps(ctx, agent, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read wrap-ups: %w", err)
	}
	return wrapUps, nil
}
