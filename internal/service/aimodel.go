package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/web-casa/aiui/internal/cache"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AIModelService manages the registry of AI model configurations
type AIModelService struct {
	db    *gorm.DB
	cache cache.ModelCache
	bus   *event.Bus
	log   *zap.Logger
}

// NewAIModelService creates a new AIModelService. A nil cache disables caching.
func NewAIModelService(db *gorm.DB, c cache.ModelCache, bus *event.Bus, log *zap.Logger) *AIModelService {
	if c == nil {
		c = cache.Noop{}
	}
	return &AIModelService{db: db, cache: c, bus: bus, log: log.With(zap.String("module", "aimodel"))}
}

// List returns all models ordered by name
func (s *AIModelService) List(activeOnly bool) ([]model.AIModel, error) {
	var models []model.AIModel
	q := s.db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&models).Error
	return models, err
}

// Get returns a single model by ID
func (s *AIModelService) Get(id uuid.UUID) (*model.AIModel, error) {
	var m model.AIModel
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetByName resolves a model by its unique name, consulting the cache first
func (s *AIModelService) GetByName(ctx context.Context, name string) (*model.AIModel, error) {
	if m, err := s.cache.Get(ctx, name); err != nil {
		s.log.Warn("model cache read failed", zap.String("name", name), zap.Error(err))
	} else if m != nil {
		return m, nil
	}

	var m model.AIModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("AI model %q does not exist: %w", name, ErrNotFound)
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, &m); err != nil {
		s.log.Warn("model cache write failed", zap.String("name", name), zap.Error(err))
	}
	return &m, nil
}

// Create validates and stores a new model
func (s *AIModelService) Create(req model.AIModelRequest, userID uint) (*model.AIModel, error) {
	m := &model.AIModel{
		AccessMode:           model.AccessOpenAIAPI,
		AccessEndpoint:       model.DefaultEndpoint,
		TokenCostPer1MInput:  decimal.Zero,
		TokenCostPer1MOutput: decimal.Zero,
		MaxTokens:            model.DefaultMaxTokens,
		CreatedByID:          ownerRef(userID),
		ModifiedByID:         ownerRef(userID),
	}
	active := true
	m.IsActive = &active

	if err := applyAIModelRequest(m, req); err != nil {
		return nil, err
	}

	if err := s.checkNameFree(m.Name, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.db.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateModelName()
		}
		return nil, fmt.Errorf("failed to create AI model: %w", err)
	}
	s.log.Info("AI model created", zap.String("name", m.Name), zap.String("access_mode", m.AccessMode))
	return m, nil
}

// Update replaces the editable fields of an existing model. Nil pointer
// fields in req keep their stored values.
func (s *AIModelService) Update(id uuid.UUID, req model.AIModelRequest, userID uint) (*model.AIModel, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	previousName := m.Name

	if err := applyAIModelRequest(m, req); err != nil {
		return nil, err
	}

	if err := s.checkNameFree(m.Name, id); err != nil {
		return nil, err
	}

	m.ModifiedByID = ownerRef(userID)
	if err := s.db.Save(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateModelName()
		}
		return nil, fmt.Errorf("failed to update AI model: %w", err)
	}

	s.bus.Publish(event.Event{
		Type:    event.AIModelUpdated,
		Source:  "aimodel",
		Payload: map[string]interface{}{"id": m.ID.String(), "name": m.Name, "previous_name": previousName},
	})
	return m, nil
}

// Delete removes a model; threads that referenced it keep existing with no model
func (s *AIModelService) Delete(id uuid.UUID) error {
	m, err := s.Get(id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ConversationThread{}).
			Where("aimodel_id = ?", id).
			Update("aimodel_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.AIModel{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete AI model: %w", err)
	}

	s.bus.Publish(event.Event{
		Type:    event.AIModelDeleted,
		Source:  "aimodel",
		Payload: map[string]interface{}{"id": id.String(), "name": m.Name},
	})
	return nil
}

// EnsureDefault creates a model with the given name if none exists. It
// backs the seed command so the multimodal endpoint has a model to resolve.
func (s *AIModelService) EnsureDefault(name string) (*model.AIModel, bool, error) {
	var existing model.AIModel
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	m, err := s.Create(model.AIModelRequest{
		Name:         name,
		Description:  "Default model for multimodal requests",
		AccessMode:   model.AccessOpenAIAPI,
		BestUseCases: "General purpose conversational answers",
	}, 0)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// checkNameFree rejects a name already used by a model other than except.
// The unique index still catches concurrent writers, see Create and Update.
func (s *AIModelService) checkNameFree(name string, except uuid.UUID) error {
	tx := s.db.Model(&model.AIModel{}).Where("name = ?", name)
	if except != uuid.Nil {
		tx = tx.Where("id != ?", except)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check AI model name: %w", err)
	}
	if count > 0 {
		return duplicateModelName()
	}
	return nil
}

func duplicateModelName() *ValidationError {
	return invalid("error.aimodel_name_exists", "name", "AI model with this name already exists.")
}

func applyAIModelRequest(m *model.AIModel, req model.AIModelRequest) error {
	errs := fieldErrors{}

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs.add("name", "This field is required.")
	case len(name) > 255:
		errs.add("name", "Ensure this value has at most 255 characters.")
	}
	m.Name = name
	m.Description = req.Description
	m.BestUseCases = req.BestUseCases

	if req.AccessMode != "" {
		if _, ok := model.AccessModes[req.AccessMode]; !ok {
			errs.add("access_mode", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", req.AccessMode))
		}
		m.AccessMode = req.AccessMode
	}

	if endpoint := strings.TrimSpace(req.AccessEndpoint); endpoint != "" {
		u, err := neturl.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.add("access_endpoint", "Enter a valid URL.")
		}
		m.AccessEndpoint = endpoint
	}

	if req.TokenCostPer1MInput != nil {
		if req.TokenCostPer1MInput.IsNegative() {
			errs.add("token_cost_per_1M_input", "Ensure this value is greater than or equal to 0.")
		}
		m.TokenCostPer1MInput = req.TokenCostPer1MInput.Round(4)
	}
	if req.TokenCostPer1MOutput != nil {
		if req.TokenCostPer1MOutput.IsNegative() {
			errs.add("token_cost_per_1M_output", "Ensure this value is greater than or equal to 0.")
		}
		m.TokenCostPer1MOutput = req.TokenCostPer1MOutput.Round(4)
	}

	if req.MaxTokens != nil {
		if *req.MaxTokens < 1 {
			errs.add("max_tokens", "Ensure this value is greater than or equal to 1.")
		}
		m.MaxTokens = *req.MaxTokens
	}
	if req.IsActive != nil {
		active := *req.IsActive
		m.IsActive = &active
	}

	return errs.err("error.aimodel_invalid")
}

func ownerRef(userID uint) *uint {
	if userID == 0 {
		return nil
	}
	id := userID
	return &id
}
