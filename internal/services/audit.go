package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	AuditEventCreate       = "event.create"
	AuditEventUpdate       = "event.update"
	AuditEventDelete       = "event.delete"
	AuditEventRespond      = "event.respond"
	AuditGroupCreate       = "group.create"
	AuditGroupDelete       = "group.delete"
	AuditGroupJoin         = "group.join"
	AuditGroupLeave        = "group.leave"
	AuditGroupMemberRemove = "group.member_remove"
	AuditGroupRoleChange   = "group.role_change"
	AuditCalendarSync      = "calendar.sync"
	AuditCalendarRemove    = "calendar.remove"
	AuditUserLogin         = "user.login"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

type AuditService struct {
	DB      *gorm.DB
	queue   chan models.AuditLog
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAuditService(db *gorm.DB, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, queueSize),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// LogAsync never blocks. When the queue is full the entry is dropped.
func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	s.pending.Add(1)
	select {
	case s.queue <- row:
	default:
		s.pending.Done()
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
		s.pending.Done()
	}
}

// Wait blocks until every queued entry has been written.
func (s *AuditService) Wait() {
	s.pending.Wait()
}

// Close drains the queue and stops the worker.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// ListForUser returns the actor's own entries, newest first.
func (s *AuditService) ListForUser(ctx context.Context, userID uuid.UUID, p utils.PaginationParams) ([]models.AuditLog, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.AuditLog{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
