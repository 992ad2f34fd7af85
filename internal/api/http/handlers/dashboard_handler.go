package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/api/dto"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/observability"
	"github.com/danilaloko/eco-bot/internal/service"
	"github.com/danilaloko/eco-bot/internal/storage"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	mediaURLTTL     = time.Hour
	previewLength   = 280
)

// DashboardHandler serves read-only challenge data to administrators.
type DashboardHandler struct {
	analytics *service.AnalyticsService
	tasks     *service.TaskService
	archive   storage.MediaArchive
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// DashboardDependencies wires the handler.
type DashboardDependencies struct {
	Analytics *service.AnalyticsService
	Tasks     *service.TaskService
	Archive   storage.MediaArchive
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	h := &DashboardHandler{
		analytics: deps.Analytics,
		tasks:     deps.Tasks,
		archive:   deps.Archive,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if h.archive == nil {
		h.archive = storage.NopArchive{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// Overview GET /api/stats.
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.analytics.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}

// PotentialSummary GET /api/stats/potential.
func (h *DashboardHandler) PotentialSummary(c *fiber.Ctx) error {
	summary, err := h.analytics.PotentialSummary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// ListTasks GET /api/tasks?status=&week=.
func (h *DashboardHandler) ListTasks(c *fiber.Ctx) error {
	var filter service.TaskListFilter
	if raw := c.Query("status"); raw != "" {
		status := domain.TaskStatus(raw)
		if !status.Valid() {
			return apperrors.NewValidationError("status must be open or archived", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if raw := c.Query("week"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.ErrInvalidWeek.WithDetails(map[string]any{"week": raw})
		}
		filter.Week = &week
	}
	tasks, err := h.tasks.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// TaskHistory GET /api/tasks/:id/history.
func (h *DashboardHandler) TaskHistory(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	history, err := h.analytics.TaskHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"task":        taskResponse(history.Task),
		"stats":       history.Stats,
		"submissions": h.submissionResponses(c.UserContext(), history.Submissions),
	}})
}

// UserHistory GET /api/users/:id/history.
func (h *DashboardHandler) UserHistory(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	history, err := h.analytics.UserHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user":        userResponse(history.User),
		"progress":    history.Progress,
		"submissions": h.submissionResponses(c.UserContext(), history.Submissions),
	}})
}

// ListSubmissions GET /api/submissions?status=pending,approved&limit=&offset=.
func (h *DashboardHandler) ListSubmissions(c *fiber.Ctx) error {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	subs, err := h.analytics.Submissions(c.UserContext(), statuses, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": h.submissionResponses(c.UserContext(), subs),
		"meta": fiber.Map{"limit": limit, "offset": offset},
	})
}

// Metrics GET /api/metrics.
func (h *DashboardHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func pathID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id must be a positive number", map[string]any{"id": raw})
	}
	return id, nil
}

func parseStatuses(raw string) ([]domain.SubmissionStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []domain.SubmissionStatus
	for _, part := range strings.Split(raw, ",") {
		status := domain.SubmissionStatus(strings.TrimSpace(part))
		switch status {
		case domain.SubmissionPending, domain.SubmissionApproved, domain.SubmissionRejected:
			out = append(out, status)
		default:
			return nil, apperrors.NewValidationError("status must be pending, approved or rejected", map[string]any{"status": part})
		}
	}
	return out, nil
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Link:        task.Link,
		Week:        task.Week,
		Deadline:    task.Deadline,
		OpensAt:     task.OpensAt,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
	}
}

func userResponse(u *domain.User) dto.UserResponse {
	buckets := make([]string, 0, len(u.ChildAgeBuckets))
	for _, b := range u.ChildAgeBuckets {
		buckets = append(buckets, string(b))
	}
	return dto.UserResponse{
		ID:                    u.ID,
		Username:              u.Username,
		FullName:              u.FullName(),
		Mode:                  string(u.Mode),
		FamilySize:            u.FamilySize,
		HasChildren:           u.HasChildren,
		ChildAgeBuckets:       buckets,
		RegistrationCompleted: u.RegistrationCompleted,
		CreatedAt:             u.CreatedAt,
	}
}

func (h *DashboardHandler) submissionResponses(ctx context.Context, subs []domain.SubmissionView) []dto.SubmissionResponse {
	items := make([]dto.SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, dto.SubmissionResponse{
			ID:              sub.ID,
			UserID:          sub.UserID,
			UserName:        sub.UserName,
			TaskID:          sub.TaskID,
			TaskTitle:       sub.TaskTitle,
			Payload:         h.payloadResponse(ctx, sub.Payload),
			ReceivedAt:      sub.ReceivedAt,
			OnTime:          sub.OnTime,
			Status:          string(sub.Status),
			RejectionNote:   sub.RejectionNote,
			DecidedAt:       sub.DecidedAt,
			DecidedBy:       sub.DecidedBy,
			SourceMessageID: sub.SourceMessageID,
		})
	}
	return items
}

func (h *DashboardHandler) payloadResponse(ctx context.Context, p domain.Payload) dto.PayloadResponse {
	resp := dto.PayloadResponse{
		Kind:    string(p.Kind),
		Label:   p.Label(),
		Preview: p.Preview(previewLength),
		FileID:  p.FileID(),
	}
	if key := p.StorageKey(); key != "" && h.archive.Enabled() {
		url, err := h.archive.URL(ctx, key, mediaURLTTL)
		if err != nil {
			h.logger.Warn("presign media url failed", zap.String("key", key), zap.Error(err))
		} else {
			resp.MediaURL = url
		}
	}
	return resp
}
