package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-assigner/internal/models"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
)

// EngineConfig governs a single assignment run.
type EngineConfig struct {
	MaxClasses        int
	SpecialSlot       bool
	SpecialSlotMarker string
	DuplicatePolicy   models.DuplicatePolicy
}

// AssignmentResult is the outcome of a successful run.
type AssignmentResult struct {
	Assignments *models.AssignmentMap
	Remaining   []models.ClassCapacity
	Stats       models.RunStats
}

// AssignmentEngine hands out class seats to students in priority order. A run owns its
// CapacityTable exclusively and processes students one at a time, so every student
// sees the seats left by the ones before.
type AssignmentEngine struct {
	cfg    EngineConfig
	logger *zap.Logger
}

// NewAssignmentEngine validates cfg and returns an engine.
func NewAssignmentEngine(cfg EngineConfig, logger *zap.Logger) (*AssignmentEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = models.DuplicatePolicyAllow
	}
	if cfg.MaxClasses <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("maxClasses must be positive, got %d", cfg.MaxClasses))
	}
	if cfg.SpecialSlot && cfg.SpecialSlotMarker == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "lunch marker is required when lunch is enabled")
	}
	if !cfg.DuplicatePolicy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("unknown duplicate policy %q", cfg.DuplicatePolicy))
	}
	return &AssignmentEngine{cfg: cfg, logger: logger}, nil
}

// Run schedules every member against capacities. It returns either a complete result
// or an error; no partial assignment is ever returned.
func (e *AssignmentEngine) Run(members []models.Member, capacities []models.ClassCapacity, rng Rand) (*AssignmentResult, error) {
	if rng == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "random source is required")
	}
	if err := checkUniqueMembers(members); err != nil {
		return nil, err
	}
	table, err := NewCapacityTable(capacities)
	if err != nil {
		return nil, err
	}
	if e.cfg.SpecialSlot {
		if table.Has(e.cfg.SpecialSlotMarker) {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, fmt.Sprintf("class %s collides with the lunch marker", e.cfg.SpecialSlotMarker))
		}
	}

	start := time.Now()
	ordered := OrderMembers(members)
	assignments := models.NewAssignmentMap(len(ordered))
	stats := models.RunStats{Members: len(ordered)}

	for rank, member := range ordered {
		periods := allocatePreferences(member.Preferences, table, e.cfg.MaxClasses)
		fromPreferences := len(periods)
		stats.PreferenceSeats += fromPreferences
		if fromPreferences == e.cfg.MaxClasses {
			stats.FullySatisfied++
		}

		periods, err = backfill(member.Name, periods, table, e.cfg.MaxClasses, rng)
		if err != nil {
			e.logger.Warn("assignment run aborted",
				zap.String("member", member.Name),
				zap.Int("rank", rank),
				zap.Int("remaining_seats", table.Total()),
				zap.Error(err))
			return nil, err
		}
		stats.BackfillSeats += len(periods) - fromPreferences

		if repeated, count := firstRepeat(periods); count > 0 {
			stats.DuplicateSeats += count
			if e.cfg.DuplicatePolicy == models.DuplicatePolicyReject {
				detail := &models.DuplicateAssignmentError{Member: member.Name, ClassID: repeated}
				return nil, appErrors.Wrap(detail, appErrors.ErrDuplicateAssignment.Code, appErrors.ErrDuplicateAssignment.Status,
					fmt.Sprintf("%s was assigned %s more than once", member.Name, repeated))
			}
		}

		if e.cfg.SpecialSlot {
			periods = insertSpecialSlot(periods, rank, e.cfg.SpecialSlotMarker)
		}

		if e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("member scheduled",
				zap.String("member", member.Name),
				zap.Int("rank", rank),
				zap.Int("preference_seats", fromPreferences),
				zap.Strings("periods", periods))
		}

		assignments.Add(models.MemberAssignment{
			Member:  member.Name,
			Email:   member.Email,
			Grade:   member.Grade,
			Rank:    rank,
			Periods: periods,
		})
	}

	stats.RemainingSeats = table.Total()
	e.logger.Info("assignment run completed",
		zap.Int("members", stats.Members),
		zap.Int("preference_seats", stats.PreferenceSeats),
		zap.Int("backfill_seats", stats.BackfillSeats),
		zap.Int("remaining_seats", stats.RemainingSeats),
		zap.Duration("elapsed", time.Since(start)))

	return &AssignmentResult{
		Assignments: assignments,
		Remaining:   table.Snapshot(),
		Stats:       stats,
	}, nil
}

func checkUniqueMembers(members []models.Member) error {
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		if _, exists := seen[member.Name]; exists {
			detail := &models.DuplicateMemberError{Member: member.Name}
			return appErrors.Wrap(detail, appErrors.ErrDuplicateMember.Code, appErrors.ErrDuplicateMember.Status,
				fmt.Sprintf("student %s is listed more than once", member.Name))
		}
		seen[member.Name] = struct{}{}
	}
	return nil
}
