package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/ordering"
	"github.com/web-casa/aiui/internal/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxThreadName = 150

// ThreadService manages conversation threads and their ordered items
type ThreadService struct {
	db  *gorm.DB
	bus *event.Bus
	log *zap.Logger
}

// NewThreadService creates a new ThreadService
func NewThreadService(db *gorm.DB, bus *event.Bus, log *zap.Logger) *ThreadService {
	return &ThreadService{db: db, bus: bus, log: log.With(zap.String("module", "thread"))}
}

// List returns the caller's threads, newest first, optionally filtered by chat type
func (s *ThreadService) List(userID uint, chatType string, q pagination.Query) ([]model.ConversationThread, pagination.Page, error) {
	tx := s.db.Model(&model.ConversationThread{}).
		Where("created_by_id = ?", userID).
		Order("updated_at DESC")
	if chatType != "" {
		tx = tx.Where("chat_type = ?", chatType)
	}
	var threads []model.ConversationThread
	page, err := pagination.Paginate(tx, q, &threads)
	return threads, page, err
}

// AdminList returns threads of every owner filtered by chat type
func (s *ThreadService) AdminList(chatType string, q pagination.Query) ([]model.ConversationThread, pagination.Page, error) {
	tx := s.db.Model(&model.ConversationThread{}).Order("updated_at DESC")
	if chatType != "" {
		tx = tx.Where("chat_type = ?", chatType)
	}
	var threads []model.ConversationThread
	page, err := pagination.Paginate(tx, q, &threads)
	return threads, page, err
}

// Get returns a thread with its model and ordered items.
// Threads the caller does not own are reported as not found.
func (s *ThreadService) Get(userID uint, id uuid.UUID) (*model.ConversationThread, error) {
	thread, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccess(userID, thread.CreatedByID) {
		return nil, ErrNotFound
	}
	return thread, nil
}

func (s *ThreadService) load(tx *gorm.DB, id uuid.UUID) (*model.ConversationThread, error) {
	var thread model.ConversationThread
	err := tx.Preload("AIModel").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order(model.ItemOrder)
		}).
		First(&thread, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// Create stores a new thread owned by userID together with any submitted items
func (s *ThreadService) Create(userID uint, in model.ThreadInput) (*model.ConversationThread, error) {
	if in.ChatType == "" {
		in.ChatType = model.ChatWeb
	}
	errs, err := s.validateThread(&in)
	if err != nil {
		return nil, err
	}
	rows, rowErrs := planItems(in.Items, nil)
	for k, v := range rowErrs {
		errs.add(k, v)
	}
	if err := errs.err("error.thread_invalid"); err != nil {
		return nil, err
	}

	thread := &model.ConversationThread{
		Name:         in.Name,
		Summary:      in.Summary,
		AIModelID:    in.AIModelID,
		ChatType:     in.ChatType,
		CreatedByID:  ownerRef(userID),
		ModifiedByID: ownerRef(userID),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
			return err
		}
		return applyItems(tx, thread.ID, userID, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	s.log.Info("thread created", zap.String("id", thread.ID.String()), zap.Int("items", len(rows)))
	return s.load(s.db, thread.ID)
}

// Update edits thread fields and, when in.Items is non-nil, applies the item
// batch: rows with an id update existing items, rows without an id are new,
// rows flagged delete are removed. Every surviving item is renumbered 1..n
// following the submitted positions.
func (s *ThreadService) Update(userID uint, id uuid.UUID, in model.ThreadInput) (*model.ConversationThread, error) {
	thread, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	// chat_type is fixed at creation unless explicitly changed
	if in.ChatType == "" {
		in.ChatType = thread.ChatType
	}
	errs, err := s.validateThread(&in)
	if err != nil {
		return nil, err
	}
	var rows []itemRow
	if in.Items != nil {
		var rowErrs fieldErrors
		rows, rowErrs = planItems(in.Items, thread.Items)
		for k, v := range rowErrs {
			errs.add(k, v)
		}
	}
	if err := errs.err("error.thread_invalid"); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model.ConversationThread{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ConversationThread{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":           in.Name,
			"summary":        in.Summary,
			"aimodel_id":     in.AIModelID,
			"chat_type":      in.ChatType,
			"modified_by_id": ownerRef(userID),
		}).Error; err != nil {
			return err
		}
		if in.Items == nil {
			return nil
		}
		return applyItems(tx, id, userID, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}

	return s.load(s.db, thread.ID)
}

// Delete removes a thread and every item in it
func (s *ThreadService) Delete(userID uint, id uuid.UUID) error {
	thread, err := s.Get(userID, id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_thread_id = ?", id).Delete(&model.ConversationItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ConversationThread{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}

	s.bus.Publish(event.Event{
		Type:    event.ThreadDeleted,
		Source:  "thread",
		Payload: map[string]interface{}{"id": id.String(), "items": len(thread.Items)},
	})
	return nil
}

func (s *ThreadService) validateThread(in *model.ThreadInput) (fieldErrors, error) {
	errs := fieldErrors{}

	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		errs.add("name", "This field is required.")
	case utf8.RuneCountInString(in.Name) > maxThreadName:
		errs.add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxThreadName))
	}

	if _, ok := model.ChatTypes[in.ChatType]; !ok {
		errs.add("chat_type", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", in.ChatType))
	}

	if in.AIModelID != nil {
		var count int64
		if err := s.db.Model(&model.AIModel{}).Where("id = ?", *in.AIModelID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to look up AI model: %w", err)
		}
		if count == 0 {
			errs.add("aimodel_id", "Select a valid choice. That choice is not one of the available choices.")
		}
	}
	return errs, nil
}

// itemRow is a validated batch row ready to be written.
type itemRow struct {
	existing *model.ConversationItem // nil for new rows
	prompt   string
	response string
	position int
	remove   bool
}

// planItems validates a submitted batch against the thread's current items.
// Existing items missing from the batch keep their relative order and go
// after the submitted rows. New rows left completely empty are skipped.
func planItems(in []model.ItemInput, current []model.ConversationItem) ([]itemRow, fieldErrors) {
	errs := fieldErrors{}
	byID := make(map[uuid.UUID]*model.ConversationItem, len(current))
	for i := range current {
		byID[current[i].ID] = &current[i]
	}
	seen := make(map[uuid.UUID]bool, len(in))

	rows := make([]itemRow, 0, len(in)+len(current))
	for i, item := range in {
		prefix := fmt.Sprintf("items[%d].", i)
		row := itemRow{
			prompt:   strings.TrimSpace(item.Prompt),
			response: strings.TrimSpace(item.Response),
			position: item.Order,
			remove:   item.Delete,
		}

		if item.ID != nil {
			existing, ok := byID[*item.ID]
			if !ok || seen[*item.ID] {
				errs.add(prefix+"id", "Select a valid choice. That choice is not one of the available choices.")
				continue
			}
			seen[*item.ID] = true
			row.existing = existing
		} else if row.remove || (row.prompt == "" && row.response == "") {
			continue
		}

		if item.Order < 0 {
			errs.add(prefix+"order", "Ensure this value is greater than or equal to 0.")
		}
		if !row.remove {
			if row.prompt == "" {
				errs.add(prefix+"prompt", "This field is required.")
			}
			if row.response == "" {
				errs.add(prefix+"response", "This field is required.")
			}
		}
		rows = append(rows, row)
	}

	for i := range current {
		if seen[current[i].ID] {
			continue
		}
		rows = append(rows, itemRow{
			existing: &current[i],
			prompt:   current[i].Prompt,
			response: current[i].Response,
		})
	}
	return rows, errs
}

// applyItems writes a planned batch, renumbering the survivors densely.
func applyItems(tx *gorm.DB, threadID uuid.UUID, userID uint, rows []itemRow) error {
	order := make([]ordering.Row, len(rows))
	for i, r := range rows {
		order[i] = ordering.Row{Index: i, Position: r.position, Remove: r.remove}
	}

	for _, r := range rows {
		if r.remove && r.existing != nil {
			if err := tx.Delete(&model.ConversationItem{}, "id = ?", r.existing.ID).Error; err != nil {
				return err
			}
		}
	}

	for _, p := range ordering.Assign(order) {
		r := rows[p.Index]
		if r.existing == nil {
			item := &model.ConversationItem{
				ConversationThreadID: threadID,
				Prompt:               r.prompt,
				Response:             r.response,
				Tokens:               wordCount(r.prompt) + wordCount(r.response),
				Order:                p.Order,
				CreatedByID:          ownerRef(userID),
				ModifiedByID:         ownerRef(userID),
			}
			if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
				return err
			}
			continue
		}

		updates := map[string]interface{}{"order_index": p.Order}
		if r.prompt != r.existing.Prompt || r.response != r.existing.Response {
			updates["prompt"] = r.prompt
			updates["response"] = r.response
			updates["tokens"] = wordCount(r.prompt) + wordCount(r.response)
			updates["modified_by_id"] = ownerRef(userID)
		}
		if err := tx.Model(&model.ConversationItem{}).Where("id = ?", r.existing.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
