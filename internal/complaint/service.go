package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"complaintdesk/internal/logging"
	"complaintdesk/internal/models"
	"complaintdesk/internal/repo"
)

var (
	ErrNotFound          = errors.New("complaint not found")
	ErrForbidden         = errors.New("complaint belongs to another user")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

// Events receives complaint lifecycle notifications. Publishing is
// best-effort after commit; a broker outage never fails the request.
type Events interface {
	Publish(ctx context.Context, key string, event any) error
}

// Indexer mirrors complaints into the search backend.
type Indexer interface {
	IndexComplaint(ctx context.Context, c *models.Complaint) error
	Search(ctx context.Context, query string, from, size int) (int64, []models.Complaint, error)
}

type Service struct {
	Complaints *repo.ComplaintRepo
	Events     Events
	Indexer    Indexer
}

type Event struct {
	Kind        string    `json:"kind"`
	ComplaintID uuid.UUID `json:"complaint_id"`
	UserID      uuid.UUID `json:"user_id"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

// validTransitions mirrors the workflow: new -> pending, pending <-> paused,
// pending -> resolved.
var validTransitions = map[string][]string{
	models.ComplaintStatusNew:     {models.ComplaintStatusPending},
	models.ComplaintStatusPending: {models.ComplaintStatusPaused, models.ComplaintStatusResolved},
	models.ComplaintStatusPaused:  {models.ComplaintStatusPending},
}

func knownStatus(s string) bool {
	switch s {
	case models.ComplaintStatusNew, models.ComplaintStatusPending,
		models.ComplaintStatusPaused, models.ComplaintStatusResolved:
		return true
	}
	return false
}

func canTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, kind, description, supportingDocs string) (*models.Complaint, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.create")

	c := &models.Complaint{
		UserID:         userID,
		Type:           kind,
		Description:    description,
		SupportingDocs: supportingDocs,
		Status:         models.ComplaintStatusNew,
	}
	if err := s.Complaints.Create(ctx, c); err != nil {
		return nil, err
	}

	s.publish(ctx, "complaint.created", c)
	s.index(ctx, c)

	l.Info("complaint_created", "complaint_id", c.ID, "user_id", userID)
	return c, nil
}

// Get returns the complaint if it belongs to userID, or unconditionally for
// superusers.
func (s *Service) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.Complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.UserID != user.ID && !user.IsSuperuser {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, status string, offset, limit int) ([]models.Complaint, int64, error) {
	if status != "" && !knownStatus(status) {
		return nil, 0, ErrUnknownStatus
	}
	return s.Complaints.ListByUser(ctx, userID, status, offset, limit)
}

func (s *Service) ListAll(ctx context.Context, status string, offset, limit int) ([]models.Complaint, int64, error) {
	if status != "" && !knownStatus(status) {
		return nil, 0, ErrUnknownStatus
	}
	return s.Complaints.ListAll(ctx, status, offset, limit)
}

func (s *Service) CountByStatus(ctx context.Context, userID uuid.UUID, status string) (int64, error) {
	if !knownStatus(status) {
		return 0, ErrUnknownStatus
	}
	return s.Complaints.CountByStatus(ctx, userID, status)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Complaint, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.update_status")

	if !knownStatus(status) {
		return nil, ErrUnknownStatus
	}
	c, err := s.Complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !canTransition(c.Status, status) {
		return nil, fmt.Errorf("%w: you can't move from %s to %s", ErrInvalidTransition, c.Status, status)
	}
	if err := s.Complaints.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	c.Status = status

	s.publish(ctx, "complaint.status_changed", c)
	s.index(ctx, c)

	l.Info("complaint_status_changed", "complaint_id", c.ID, "status", status)
	return c, nil
}

func (s *Service) Reply(ctx context.Context, author *models.User, complaintID uuid.UUID, message string) (*models.Feedback, error) {
	c, err := s.Complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.UserID != author.ID && !author.IsSuperuser {
		return nil, ErrForbidden
	}

	f := &models.Feedback{
		UserID:      author.ID,
		ComplaintID: c.ID,
		Message:     message,
	}
	if err := s.Complaints.AddFeedback(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Feedback(ctx context.Context, user *models.User, complaintID uuid.UUID) ([]models.Feedback, error) {
	if _, err := s.Get(ctx, user, complaintID); err != nil {
		return nil, err
	}
	return s.Complaints.ListFeedback(ctx, complaintID)
}

func (s *Service) Search(ctx context.Context, query string, from, size int) (int64, []models.Complaint, error) {
	if s.Indexer == nil {
		return 0, nil, errors.New("search backend not configured")
	}
	return s.Indexer.Search(ctx, query, from, size)
}

func (s *Service) publish(ctx context.Context, kind string, c *models.Complaint) {
	if s.Events == nil {
		return
	}
	ev := Event{Kind: kind, ComplaintID: c.ID, UserID: c.UserID, Status: c.Status, At: time.Now().UTC()}
	if err := s.Events.Publish(ctx, c.ID.String(), ev); err != nil {
		logging.FromContext(ctx).Error("publish_event_failed", "kind", kind, "error", err)
	}
}

func (s *Service) index(ctx context.Context, c *models.Complaint) {
	if s.Indexer == nil {
		return
	}
	if err := s.Indexer.IndexComplaint(ctx, c); err != nil {
		logging.FromContext(ctx).Error("index_complaint_failed", "complaint_id", c.ID, "error", err)
	}
}
