package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/metrics"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/ordering"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoResponse is the text used when the model produced nothing usable
const NoResponse = "No response generated"

// Completer sends a single prompt to an AI backend
type Completer interface {
	Complete(ctx context.Context, t llm.Target, prompt string) (llm.Result, error)
}

// Completion is the outcome of one prompt
type Completion struct {
	Text   string    `json:"text"`
	Tokens int       `json:"tokens"`
	Usage  llm.Usage `json:"-"`
}

// SendRequest asks for a prompt to be answered and stored. A nil ThreadID
// starts a new thread using AIModelID.
type SendRequest struct {
	UserID    uint
	ThreadID  *uuid.UUID
	AIModelID *uuid.UUID
	Prompt    string
	ChatType  string
}

// SendResult is the stored exchange
type SendResult struct {
	Thread *model.ConversationThread `json:"thread"`
	Item   *model.ConversationItem   `json:"item"`
}

// PromptService sends prompts to AI models and stores the exchanges
type PromptService struct {
	db        *gorm.DB
	completer Completer
	bus       *event.Bus
	log       *zap.Logger
	timeout   time.Duration
}

// NewPromptService creates a new PromptService. timeout bounds each AI call; zero disables it.
func NewPromptService(db *gorm.DB, completer Completer, bus *event.Bus, log *zap.Logger, timeout time.Duration) *PromptService {
	return &PromptService{
		db:        db,
		completer: completer,
		bus:       bus,
		log:       log.With(zap.String("module", "prompt")),
		timeout:   timeout,
	}
}

// Complete sends prompt to m and returns the first choice. An empty answer
// yields the fallback text without an error; a backend failure yields the
// fallback text and an *UpstreamError.
func (s *PromptService) Complete(ctx context.Context, m *model.AIModel, prompt string) (Completion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.completer.Complete(ctx, llm.TargetFor(m), prompt)
	took := time.Since(start)

	switch {
	case errors.Is(err, llm.ErrNoChoices) || (err == nil && res.Text == ""):
		metrics.ObserveCompletion(m.Name, metrics.OutcomeEmpty, took)
		s.log.Warn("model returned no content", zap.String("model", m.Name))
		return Completion{Text: NoResponse, Tokens: wordCount(prompt) + wordCount(NoResponse)}, nil
	case err != nil:
		metrics.ObserveCompletion(m.Name, metrics.OutcomeError, took)
		s.log.Error("completion failed", zap.String("model", m.Name), zap.Duration("latency", took), zap.Error(err))
		return Completion{Text: NoResponse}, &UpstreamError{Op: "completion", Err: err}
	}

	metrics.ObserveCompletion(m.Name, metrics.OutcomeOK, took)
	return Completion{
		Text:   res.Text,
		Tokens: wordCount(prompt) + wordCount(res.Text),
		Usage:  res.Usage,
	}, nil
}

// Send answers a prompt inside the caller's thread (or a new one) and appends
// the exchange as the thread's next item. Nothing is stored when the backend fails.
func (s *PromptService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, invalid("error.prompt_required", "prompt", "required. A prompt must be posted.")
	}

	thread, err := s.resolveThread(ctx, req)
	if err != nil {
		return nil, err
	}

	if thread.AIModelID == nil {
		return nil, invalid("error.aimodel_required", "aimodel_id", "Select an AI model for this conversation.")
	}
	var m model.AIModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", *thread.AIModelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("error.aimodel_required", "aimodel_id", "Select a valid choice. That choice is not one of the available choices.")
		}
		return nil, err
	}
	if !m.Active() {
		return nil, invalid("error.aimodel_inactive", "aimodel_id", fmt.Sprintf("AI model %q is not active.", m.Name))
	}

	completion, err := s.Complete(ctx, &m, prompt)
	if err != nil {
		return nil, err
	}

	item, err := s.Append(ctx, thread, prompt, completion, req.UserID)
	if err != nil {
		return nil, err
	}
	thread.AIModel = &m
	return &SendResult{Thread: thread, Item: item}, nil
}

func (s *PromptService) resolveThread(ctx context.Context, req SendRequest) (*model.ConversationThread, error) {
	if req.ThreadID != nil {
		var thread model.ConversationThread
		if err := s.db.WithContext(ctx).First(&thread, "id = ?", *req.ThreadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !auth.CanAccess(req.UserID, thread.CreatedByID) {
			return nil, ErrNotFound
		}
		return &thread, nil
	}

	chatType := req.ChatType
	if chatType == "" {
		chatType = model.ChatWeb
	}
	if _, ok := model.ChatTypes[chatType]; !ok {
		return nil, invalid("error.thread_invalid", "chat_type", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", chatType))
	}
	if req.AIModelID == nil {
		return nil, invalid("error.aimodel_required", "aimodel_id", "Select an AI model for this conversation.")
	}

	// The thread is created only once the model answers, see Append.
	return &model.ConversationThread{
		Name:         model.DefaultThreadName,
		AIModelID:    req.AIModelID,
		ChatType:     chatType,
		CreatedByID:  ownerRef(req.UserID),
		ModifiedByID: ownerRef(req.UserID),
	}, nil
}

// Append stores prompt/response as the next item of thread, creating the
// thread first when it has no ID yet. The thread row is locked while the
// next position is computed so concurrent appends cannot share a position.
func (s *PromptService) Append(ctx context.Context, thread *model.ConversationThread, prompt string, c Completion, userID uint) (*model.ConversationItem, error) {
	item := &model.ConversationItem{
		Prompt:       prompt,
		Response:     c.Text,
		Tokens:       c.Tokens,
		IsFullSaved:  true,
		CreatedByID:  ownerRef(userID),
		ModifiedByID: ownerRef(userID),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if thread.ID == uuid.Nil {
			if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
				return err
			}
		} else if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model.ConversationThread{}, "id = ?", thread.ID).Error; err != nil {
			return err
		}

		var last int
		if err := tx.Model(&model.ConversationItem{}).
			Where("conversation_thread_id = ?", thread.ID).
			Select("COALESCE(MAX(order_index), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		item.ConversationThreadID = thread.ID
		item.Order = ordering.Next(last)
		if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
			return err
		}
		touch := map[string]interface{}{"updated_at": time.Now()}
		if userID != 0 {
			touch["modified_by_id"] = userID
		}
		return tx.Model(&model.ConversationThread{}).Where("id = ?", thread.ID).Updates(touch).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store conversation item: %w", err)
	}

	s.bus.Publish(event.Event{
		Type:   event.ItemCreated,
		Source: "prompt",
		Payload: map[string]interface{}{
			"thread_id": thread.ID.String(),
			"item_id":   item.ID.String(),
			"chat_type": thread.ChatType,
			"order":     item.Order,
		},
	})
	return item, nil
}
