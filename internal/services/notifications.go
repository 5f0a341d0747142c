package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/mailer"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/logger"
	"gorm.io/gorm"
)

type NotificationAction string

const (
	ActionCreated NotificationAction = "Created"
	ActionUpdated NotificationAction = "Updated"
	ActionDeleted NotificationAction = "Deleted"
)

// NotificationBatch is every message produced by a single event mutation.
type NotificationBatch struct {
	EventID  uuid.UUID
	Action   NotificationAction
	Messages []mailer.Message
}

// NotificationService emails group members about group event changes.
// Batches are built synchronously and delivered by a background worker, so a
// slow or failing relay never affects the mutation that triggered it.
type NotificationService struct {
	DB          *gorm.DB
	Sender      mailer.Sender
	From        string
	SendTimeout time.Duration

	queue   chan NotificationBatch
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewNotificationService(db *gorm.DB, sender mailer.Sender, from string, queueSize int, sendTimeout time.Duration) *NotificationService {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &NotificationService{
		DB:          db,
		Sender:      sender,
		From:        from,
		SendTimeout: sendTimeout,
		queue:       make(chan NotificationBatch, queueSize),
		done:        make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// Build resolves recipients and renders one message per group member other
// than the actor. It returns an empty batch for solo events or when nobody
// else is in the group.
func (s *NotificationService) Build(ctx context.Context, event *models.UserEvent, action NotificationAction, actor *models.User) (NotificationBatch, error) {
	batch := NotificationBatch{EventID: event.ID, Action: action}
	if !event.IsGroup() || event.GroupID == nil {
		return batch, nil
	}

	var group models.Group
	if err := s.DB.WithContext(ctx).Select("id", "name").First(&group, "id = ?", *event.GroupID).Error; err != nil {
		return batch, fmt.Errorf("loading group %s: %w", *event.GroupID, err)
	}

	var recipients []models.User
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN group_memberships ON group_memberships.user_id = users.id").
		Where("group_memberships.group_id = ?", group.ID).
		Where("users.id <> ?", actor.ID).
		Where("users.email <> ''").
		Order("users.email ASC").
		Find(&recipients).Error
	if err != nil {
		return batch, fmt.Errorf("loading recipients: %w", err)
	}

	subject := fmt.Sprintf("Group Event %s: %s", action, event.Description)
	body := renderBody(event, action, actor, group.Name)
	for _, u := range recipients {
		batch.Messages = append(batch.Messages, mailer.Message{
			Subject: subject,
			Body:    body,
			From:    s.From,
			To:      u.Email,
		})
	}
	return batch, nil
}

func renderBody(event *models.UserEvent, action NotificationAction, actor *models.User, groupName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s a group event in %s.\n\n", actor.DisplayName(), strings.ToLower(string(action)), groupName)
	fmt.Fprintf(&b, "Description: %s\n", event.Description)
	fmt.Fprintf(&b, "Date: %s\n", event.Date)
	fmt.Fprintf(&b, "Time: %s - %s\n", event.StartTime, event.EndTime)
	if event.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", event.Location)
	}
	fmt.Fprintf(&b, "By: %s\n", actor.DisplayName())
	return b.String()
}

// Enqueue hands a batch to the worker. Empty batches are skipped and a full
// queue drops the batch with a warning.
func (s *NotificationService) Enqueue(batch NotificationBatch) {
	if s == nil {
		return
	}
	if len(batch.Messages) == 0 {
		logger.Debug("notification_skipped", map[string]interface{}{
			"event_id": batch.EventID.String(),
			"action":   string(batch.Action),
			"reason":   "no recipients",
		})
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.NotificationFailures.WithLabelValues("closed").Inc()
		return
	}

	s.pending.Add(1)
	select {
	case s.queue <- batch:
	default:
		s.pending.Done()
		metrics.NotificationFailures.WithLabelValues("queue_full").Inc()
		logger.Warn("notification_queue_full", map[string]interface{}{
			"event_id": batch.EventID.String(),
			"action":   string(batch.Action),
			"dropped":  len(batch.Messages),
		})
	}
}

// Notify builds and enqueues in one step. Errors are logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, event *models.UserEvent, action NotificationAction, actor *models.User) {
	if s == nil {
		return
	}
	batch, err := s.Build(ctx, event, action, actor)
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("build").Inc()
		logger.ErrorWithUser(actor.ID.String(), "notification_build_failed", err, map[string]interface{}{
			"event_id": event.ID.String(),
			"action":   string(action),
		})
		return
	}
	s.Enqueue(batch)
}

func (s *NotificationService) processQueue() {
	defer close(s.done)
	for batch := range s.queue {
		s.send(batch)
		s.pending.Done()
	}
}

func (s *NotificationService) send(batch NotificationBatch) {
	ctx := context.Background()
	if s.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.SendTimeout)
		defer cancel()
	}

	sent, err := s.Sender.SendBatch(ctx, batch.Messages)
	metrics.NotificationsSent.Add(float64(sent))
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("send").Inc()
		logger.Error("notification_send_failed", err, map[string]interface{}{
			"event_id":   batch.EventID.String(),
			"action":     string(batch.Action),
			"recipients": len(batch.Messages),
			"sent":       sent,
		})
		return
	}
	logger.Info("notification_sent", map[string]interface{}{
		"event_id":   batch.EventID.String(),
		"action":     string(batch.Action),
		"recipients": sent,
	})
}

// Wait blocks until every queued batch has been handed to the sender.
func (s *NotificationService) Wait() {
	s.pending.Wait()
}

func (s *NotificationService) Close() {
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
