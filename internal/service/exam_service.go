package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
)

type examRepo interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	ListByRoomAndDate(ctx context.Context, roomID string, date time.Time) ([]models.Exam, error)
	ListByDateForStudents(ctx context.Context, date time.Time, studentIDs []string, excludeClassID string) ([]models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	UpdateStatus(ctx context.Context, id string, status models.ExamStatus) error
	Delete(ctx context.Context, id string) error
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// ScheduleExamRequest creates an exam.
type ScheduleExamRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// RescheduleExamRequest moves an exam. Empty fields keep their current value.
type RescheduleExamRequest struct {
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleExamResult pairs the saved exam with any advisory conflicts.
type ScheduleExamResult struct {
	Exam     *models.Exam          `json:"exam"`
	Warnings []models.ExamConflict `json:"warnings,omitempty"`
}

// ExamService schedules exams and detects room and student conflicts. Room
// double-booking is a hard error; student clashes are advisory warnings
// unless failOnStudentConflict is set.
type ExamService struct {
	exams                 examRepo
	classes               classReader
	rooms                 roomReader
	enrollments           enrollmentReader
	audits                auditRecorder
	validator             *validator.Validate
	logger                *zap.Logger
	failOnStudentConflict bool
}

// NewExamService constructs ExamService.
func NewExamService(exams examRepo, classes classReader, rooms roomReader, enrollments enrollmentReader, audits auditRecorder, validate *validator.Validate, logger *zap.Logger, failOnStudentConflict bool) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:                 exams,
		classes:               classes,
		rooms:                 rooms,
		enrollments:           enrollments,
		audits:                audits,
		validator:             validate,
		logger:                logger,
		failOnStudentConflict: failOnStudentConflict,
	}
}

// Get returns one exam.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// List returns exams matching the filter plus pagination info.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	exams, total, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Schedule validates and books an exam. The room must be free for the slot;
// student clashes come back as warnings.
func (s *ExamService) Schedule(ctx context.Context, req ScheduleExamRequest) (*ScheduleExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	date, start, end, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if err := s.requireRoomFree(ctx, req.RoomID, date, start, end, ""); err != nil {
		return nil, err
	}
	warnings, err := s.StudentConflicts(ctx, req.ClassID, date, start, end)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		s.logger.Warn("exam scheduled with student conflicts",
			zap.String("class_id", req.ClassID),
			zap.Int("conflicts", len(warnings)),
		)
		if s.failOnStudentConflict {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("%d students have another exam in this slot", len(warnings)))
		}
	}
	exam := &models.Exam{
		ClassID:   req.ClassID,
		RoomID:    req.RoomID,
		Title:     req.Title,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Status:    models.ExamStatusScheduled,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return &ScheduleExamResult{Exam: exam, Warnings: warnings}, nil
}

// Reschedule moves a SCHEDULED exam to a new slot and/or room. The exam's own
// booking is excluded from the room check. The move is audited.
func (s *ExamService) Reschedule(ctx context.Context, id string, req RescheduleExamRequest, actorID string) (*ScheduleExamResult, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != models.ExamStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrTerminalState, "only scheduled exams can be rescheduled")
	}
	prev := *exam

	dateStr := req.Date
	if dateStr == "" {
		dateStr = exam.Date.Format("2006-01-02")
	}
	startStr := req.StartTime
	if startStr == "" {
		startStr = exam.StartTime
	}
	endStr := req.EndTime
	if endStr == "" {
		endStr = exam.EndTime
	}
	date, start, end, err := parseSlot(dateStr, startStr, endStr)
	if err != nil {
		return nil, err
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = exam.RoomID
	} else if roomID != exam.RoomID {
		if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
		}
	}
	if err := s.requireRoomFree(ctx, roomID, date, start, end, exam.ID); err != nil {
		return nil, err
	}
	warnings, err := s.StudentConflicts(ctx, exam.ClassID, date, start, end)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 && s.failOnStudentConflict {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("%d students have another exam in this slot", len(warnings)))
	}

	exam.RoomID = roomID
	exam.Date = date
	exam.StartTime = start
	exam.EndTime = end
	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	s.auditExam(ctx, actorID, models.AuditActionExamReschedule, exam.ID, &prev, exam)
	return &ScheduleExamResult{Exam: exam, Warnings: warnings}, nil
}

// Complete marks a SCHEDULED exam as held.
func (s *ExamService) Complete(ctx context.Context, id string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamStatusCompleted)
}

// Cancel marks a SCHEDULED exam as cancelled, freeing its room slot. Audited.
func (s *ExamService) Cancel(ctx context.Context, id, actorID string) (*models.Exam, error) {
	exam, err := s.transition(ctx, id, models.ExamStatusCancelled)
	if err != nil {
		return nil, err
	}
	s.auditExam(ctx, actorID, models.AuditActionExamCancel, exam.ID, nil, exam)
	return exam, nil
}

// Delete removes an exam record. Completed exams are part of the academic
// record and cannot be deleted.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if exam.Status == models.ExamStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "completed exams cannot be deleted")
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

// CheckRoomAvailability probes a room for a slot without booking anything.
func (s *ExamService) CheckRoomAvailability(ctx context.Context, roomID, dateStr, startStr, endStr, excludeExamID string) (*models.RoomAvailability, error) {
	date, start, end, err := parseSlot(dateStr, startStr, endStr)
	if err != nil {
		return nil, err
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	blocking, err := s.roomBlocking(ctx, roomID, date, start, end, excludeExamID)
	if err != nil {
		return nil, err
	}
	return &models.RoomAvailability{
		Available: len(blocking) == 0,
		RoomID:    roomID,
		Date:      date.Format("2006-01-02"),
		StartTime: start,
		EndTime:   end,
		Blocking:  blocking,
	}, nil
}

// StudentConflicts returns advisory clashes: other exams on the same day,
// overlapping the slot, whose class shares at least one registered student
// with the given class.
func (s *ExamService) StudentConflicts(ctx context.Context, classID string, date time.Time, start, end string) ([]models.ExamConflict, error) {
	enrollments, err := s.enrollments.ListRegisteredByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if len(enrollments) == 0 {
		return nil, nil
	}
	studentIDs := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		studentIDs = append(studentIDs, enrollment.StudentID)
	}
	others, err := s.exams.ListByDateForStudents(ctx, date, studentIDs, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan student exams")
	}
	var conflicts []models.ExamConflict
	for _, other := range others {
		if !other.Overlaps(start, end) {
			continue
		}
		conflicts = append(conflicts, models.ExamConflict{
			Type:        "STUDENT",
			Description: fmt.Sprintf("students of this class sit %q from %s to %s", other.Title, other.StartTime, other.EndTime),
			ExamID:      other.ID,
			ExamTitle:   other.Title,
		})
	}
	return conflicts, nil
}

func (s *ExamService) transition(ctx context.Context, id string, target models.ExamStatus) (*models.Exam, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalState,
			fmt.Sprintf("exam is already %s", exam.Status))
	}
	if err := s.exams.UpdateStatus(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam status")
	}
	exam.Status = target
	return exam, nil
}

func (s *ExamService) requireRoomFree(ctx context.Context, roomID string, date time.Time, start, end, excludeExamID string) error {
	blocking, err := s.roomBlocking(ctx, roomID, date, start, end, excludeExamID)
	if err != nil {
		return err
	}
	if len(blocking) > 0 {
		return appErrors.Clone(appErrors.ErrRoomOccupied,
			fmt.Sprintf("room is occupied by %q from %s to %s", blocking[0].Title, blocking[0].StartTime, blocking[0].EndTime))
	}
	return nil
}

func (s *ExamService) roomBlocking(ctx context.Context, roomID string, date time.Time, start, end, excludeExamID string) ([]models.Exam, error) {
	booked, err := s.exams.ListByRoomAndDate(ctx, roomID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan room bookings")
	}
	var blocking []models.Exam
	for _, other := range booked {
		if other.ID == excludeExamID {
			continue
		}
		if other.Overlaps(start, end) {
			blocking = append(blocking, other)
		}
	}
	return blocking, nil
}

func (s *ExamService) auditExam(ctx context.Context, actorID, action, examID string, oldExam, newExam *models.Exam) {
	if s.audits == nil {
		return
	}
	var oldValues, newValues []byte
	if oldExam != nil {
		oldValues, _ = json.Marshal(oldExam)
	}
	if newExam != nil {
		newValues, _ = json.Marshal(newExam)
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	log := &models.AuditLog{
		ActorID:    actor,
		Action:     action,
		Resource:   "exams",
		ResourceID: &examID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.audits.Create(ctx, log); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

// parseSlot normalizes the date to UTC midnight and validates the "HH:MM"
// interval. Zero-padded times keep lexicographic order chronological.
func parseSlot(dateStr, startStr, endStr string) (time.Time, string, string, error) {
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, "", "", appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	start, err := time.Parse("15:04", startStr)
	if err != nil {
		return time.Time{}, "", "", appErrors.Clone(appErrors.ErrValidation, "start time must be formatted HH:MM")
	}
	end, err := time.Parse("15:04", endStr)
	if err != nil {
		return time.Time{}, "", "", appErrors.Clone(appErrors.ErrValidation, "end time must be formatted HH:MM")
	}
	if !start.Before(end) {
		return time.Time{}, "", "", appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	return date, start.Format("15:04"), end.Format("15:04"), nil
}
