package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-assigner/internal/dto"
	"github.com/noah-isme/sma-class-assigner/internal/models"
	appErrors "github.com/noah-isme/sma-class-assigner/pkg/errors"
	"github.com/noah-isme/sma-class-assigner/pkg/export"
	"github.com/noah-isme/sma-class-assigner/pkg/jobs"
)

// JobTypeAssignmentRun identifies queued assignment runs.
const JobTypeAssignmentRun = "assignment_run"

type runQueue interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ClassAssignmentConfig holds the defaults applied to requests that leave a setting unset.
type ClassAssignmentConfig struct {
	MaxClasses      int
	DefaultCapacity int
	LunchEnabled    bool
	LunchMarker     string
	DuplicatePolicy models.DuplicatePolicy
	MaxStudents     int
	ResultTTL       time.Duration
}

// ClassAssignmentService runs assignment requests and keeps their results for later lookup.
type ClassAssignmentService struct {
	cfg       ClassAssignmentConfig
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cache     *CacheService
	store     *runStore
	queue     runQueue
	csv       csvRenderer
	seed      func() int64
	now       func() time.Time
}

// NewClassAssignmentService wires the assignment service.
func NewClassAssignmentService(cfg ClassAssignmentConfig, validate *validator.Validate, metrics *MetricsService, cache *CacheService, logger *zap.Logger) *ClassAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Minute
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = models.DuplicatePolicyAllow
	}
	return &ClassAssignmentService{
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cache:     cache,
		store:     newRunStore(cfg.ResultTTL, nil),
		csv:       export.NewCSVExporter(),
		seed:      func() int64 { return time.Now().UnixNano() },
		now:       time.Now,
	}
}

// AttachQueue enables asynchronous runs.
func (s *ClassAssignmentService) AttachQueue(queue runQueue) {
	s.queue = queue
}

type runPlan struct {
	engine     *AssignmentEngine
	settings   dto.AssignmentSettings
	members    []models.Member
	capacities []models.ClassCapacity
	seed       int64
}

type runJobPayload struct {
	RunID string
	Plan  *runPlan
}

// Preview runs the assignment without storing it.
func (s *ClassAssignmentService) Preview(ctx context.Context, req dto.GenerateAssignmentsRequest) (*dto.AssignmentPreviewResponse, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	result, err := s.execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &dto.AssignmentPreviewResponse{
		Seed:        plan.seed,
		Settings:    plan.settings,
		Assignments: result.Assignments,
		Roster:      rosterView(ProjectAttendance(result.Assignments)),
		Remaining:   result.Remaining,
		Stats:       result.Stats,
	}, nil
}

// CreateRun runs the assignment and stores the outcome. Async requests are queued and
// returned in PENDING state.
func (s *ClassAssignmentService) CreateRun(ctx context.Context, req dto.GenerateAssignmentsRequest, requestedBy string) (*models.AssignmentRun, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	run := models.AssignmentRun{
		ID:              uuid.NewString(),
		Status:          models.AssignmentRunStatusPending,
		Seed:            plan.seed,
		MaxClasses:      plan.settings.MaxClasses,
		Lunch:           plan.settings.Lunch,
		LunchMarker:     plan.settings.LunchMarker,
		DuplicatePolicy: models.DuplicatePolicy(plan.settings.DuplicatePolicy),
		RequestedBy:     requestedBy,
		CreatedAt:       s.now().UTC(),
	}

	if req.Async {
		if s.queue == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous runs are not enabled")
		}
		s.store.Save(run)
		job := jobs.Job{ID: run.ID, Type: JobTypeAssignmentRun, Payload: runJobPayload{RunID: run.ID, Plan: plan}}
		if err := s.queue.Enqueue(job); err != nil {
			s.store.Delete(run.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue assignment run")
		}
		s.metrics.AddQueuedRuns(1)
		s.logger.Info("assignment run queued", zap.String("run_id", run.ID), zap.Int64("seed", run.Seed), zap.String("requested_by", requestedBy))
		return &run, nil
	}

	result, err := s.execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.complete(ctx, &run, result, nil)
	return &run, nil
}

// ProcessRunJob executes a queued run. Engine failures are recorded on the run rather
// than retried since the same seed gives the same outcome.
func (s *ClassAssignmentService) ProcessRunJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(runJobPayload)
	if !ok || payload.Plan == nil {
		return jobs.Permanent(fmt.Errorf("unexpected payload for job %s", job.ID))
	}
	s.metrics.AddQueuedRuns(-1)

	run, ok := s.store.Get(payload.RunID)
	if !ok {
		s.logger.Info("queued run no longer stored", zap.String("run_id", payload.RunID))
		return nil
	}
	if run.Done() {
		return nil
	}

	result, err := s.execute(ctx, payload.Plan)
	s.complete(ctx, &run, result, err)
	return nil
}

// GetRun returns a stored run, falling back to the result cache.
func (s *ClassAssignmentService) GetRun(ctx context.Context, id string) (*models.AssignmentRun, error) {
	if run, ok := s.store.Get(id); ok {
		return &run, nil
	}
	var cached models.AssignmentRun
	hit, err := s.cache.Get(ctx, RunKey(id), &cached)
	if err != nil || !hit {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assignment run %s not found", id))
	}
	if s.store.expired(cached) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assignment run %s not found", id))
	}
	s.store.Save(cached)
	return &cached, nil
}

// GetRoster projects the attendance roster of a completed run.
func (s *ClassAssignmentService) GetRoster(ctx context.Context, id string) (*dto.RunRosterResponse, error) {
	run, err := s.completedRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RunRosterResponse{
		RunID:  run.ID,
		Roster: rosterView(ProjectAttendance(run.Assignments)),
	}, nil
}

// GetMemberSchedule returns one student's periods from a completed run.
func (s *ClassAssignmentService) GetMemberSchedule(ctx context.Context, id, member string) (*models.MemberAssignment, error) {
	run, err := s.completedRun(ctx, id)
	if err != nil {
		return nil, err
	}
	entry, ok := run.Assignments.Get(member)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s is not part of run %s", member, id))
	}
	return &entry, nil
}

// DeleteRun drops a run from the store and the cache.
func (s *ClassAssignmentService) DeleteRun(ctx context.Context, id string) error {
	found := s.store.Delete(id)
	if !found {
		var cached models.AssignmentRun
		hit, _ := s.cache.Get(ctx, RunKey(id), &cached)
		found = hit
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assignment run %s not found", id))
	}
	if err := s.cache.Delete(ctx, RunKey(id)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evict cached run")
	}
	s.logger.Info("assignment run deleted", zap.String("run_id", id))
	return nil
}

// PurgeExpired drops runs past their TTL from the in-memory store.
func (s *ClassAssignmentService) PurgeExpired() int {
	return s.store.Purge()
}

func (s *ClassAssignmentService) completedRun(ctx context.Context, id string) (*models.AssignmentRun, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.AssignmentRunStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("assignment run %s is %s", id, run.Status))
	}
	return run, nil
}

func (s *ClassAssignmentService) plan(req dto.GenerateAssignmentsRequest) (*runPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if s.cfg.MaxStudents > 0 && len(req.Students) > s.cfg.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d students per run, got %d", s.cfg.MaxStudents, len(req.Students)))
	}

	settings := dto.AssignmentSettings{
		MaxClasses:      s.cfg.MaxClasses,
		Lunch:           s.cfg.LunchEnabled,
		LunchMarker:     s.cfg.LunchMarker,
		DuplicatePolicy: string(s.cfg.DuplicatePolicy),
		DefaultCapacity: s.cfg.DefaultCapacity,
	}
	if req.MaxClasses != 0 {
		settings.MaxClasses = req.MaxClasses
	}
	if req.Lunch != nil {
		settings.Lunch = *req.Lunch
	}
	if req.LunchMarker != "" {
		settings.LunchMarker = req.LunchMarker
	}
	if req.DuplicatePolicy != "" {
		settings.DuplicatePolicy = req.DuplicatePolicy
	}
	if req.DefaultCapacity != nil {
		settings.DefaultCapacity = *req.DefaultCapacity
	}
	if !settings.Lunch {
		settings.LunchMarker = ""
	}

	engine, err := NewAssignmentEngine(EngineConfig{
		MaxClasses:        settings.MaxClasses,
		SpecialSlot:       settings.Lunch,
		SpecialSlotMarker: settings.LunchMarker,
		DuplicatePolicy:   models.DuplicatePolicy(settings.DuplicatePolicy),
	}, s.logger)
	if err != nil {
		return nil, err
	}

	members := make([]models.Member, len(req.Students))
	for i, student := range req.Students {
		members[i] = models.Member{
			Name:        student.Name,
			Email:       student.Email,
			Grade:       student.Grade,
			SubmittedAt: student.SubmittedAt,
			Preferences: append([]string(nil), student.Preferences...),
		}
	}
	capacities := make([]models.ClassCapacity, len(req.Classes))
	for i, class := range req.Classes {
		seats := settings.DefaultCapacity
		if class.Capacity != nil {
			seats = *class.Capacity
		}
		capacities[i] = models.ClassCapacity{ClassID: class.ClassID, Seats: seats}
	}

	seed := s.seed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	return &runPlan{
		engine:     engine,
		settings:   settings,
		members:    members,
		capacities: capacities,
		seed:       seed,
	}, nil
}

func (s *ClassAssignmentService) execute(ctx context.Context, plan *runPlan) (*AssignmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "assignment run cancelled")
	}
	start := time.Now()
	result, err := plan.engine.Run(plan.members, plan.capacities, NewSeededRand(plan.seed))
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveRun(RunOutcomeFailed, elapsed, nil)
		return nil, err
	}
	s.metrics.ObserveRun(RunOutcomeCompleted, elapsed, &result.Stats)
	return result, nil
}

func (s *ClassAssignmentService) complete(ctx context.Context, run *models.AssignmentRun, result *AssignmentResult, runErr error) {
	completedAt := s.now().UTC()
	run.CompletedAt = &completedAt
	if runErr != nil {
		run.Status = models.AssignmentRunStatusFailed
		run.Error = appErrors.FromError(runErr)
		s.store.Save(*run)
		s.logger.Warn("assignment run failed", zap.String("run_id", run.ID), zap.Int64("seed", run.Seed), zap.Error(runErr))
		return
	}

	stats := result.Stats
	run.Status = models.AssignmentRunStatusCompleted
	run.Assignments = result.Assignments
	run.Remaining = result.Remaining
	run.Stats = &stats
	s.store.Save(*run)

	ttl := s.cfg.ResultTTL - completedAt.Sub(run.CreatedAt)
	if err := s.cache.Set(ctx, RunKey(run.ID), run, ttl); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("assignment run not cached", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.logger.Info("assignment run stored",
		zap.String("run_id", run.ID),
		zap.Int64("seed", run.Seed),
		zap.String("requested_by", run.RequestedBy),
		zap.Int("members", stats.Members))
}

func rosterView(roster models.AttendanceRoster) []dto.RosterClass {
	classes := roster.Classes()
	view := make([]dto.RosterClass, 0, len(classes))
	for _, classID := range classes {
		periods := roster.Periods(classID)
		entry := dto.RosterClass{ClassID: classID, Periods: make([]dto.RosterPeriod, 0, len(periods))}
		for _, period := range periods {
			entry.Periods = append(entry.Periods, dto.RosterPeriod{
				Period:  period,
				Members: append([]string(nil), roster.Members(classID, period)...),
			})
		}
		view = append(view, entry)
	}
	return view
}
