package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/soledexapp/soledex-server/internal/domain"
)

const runPrefix = "run:"

var ErrRunNotFound = errors.New("run not found")

// Run Operations

// SaveRunReport persists the report for one collection run. Called once
// when a run reaches a terminal state, and also mid-run for checkpoints,
// so it overwrites any prior copy.
func (s *Store) SaveRunReport(ctx context.Context, report *domain.RunReport) error {
	if err := s.set([]byte(runPrefix+report.ID), report); err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("run report saved", "run_id", report.ID, "state", report.State)
	}
	return nil
}

// GetRunReport retrieves a run report by ID.
func (s *Store) GetRunReport(ctx context.Context, id string) (*domain.RunReport, error) {
	var report domain.RunReport
	err := s.get([]byte(runPrefix+id), &report)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run report: %w", err)
	}
	return &report, nil
}

// ListRunReports returns all run reports, most recent first.
func (s *Store) ListRunReports(ctx context.Context) ([]*domain.RunReport, error) {
	var reports []*domain.RunReport
	err := scanPrefix(s, runPrefix, func(r *domain.RunReport) error {
		reports = append(reports, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list run reports: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}
