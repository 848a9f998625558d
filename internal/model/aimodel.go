package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Access modes for an AI model backend
const (
	AccessOpenAIAPI   = "openai_api"
	AccessLocal       = "local"
	AccessTransformer = "transformer"
)

// DefaultEndpoint is used when a model is created without an access endpoint
const DefaultEndpoint = "https://openrouter.ai/api/v1"

// DefaultMaxTokens is the completion limit applied when none is given
const DefaultMaxTokens = 4096

// AccessModes lists the valid access modes with their display labels
var AccessModes = map[string]string{
	AccessOpenAIAPI:   "OpenAI API",
	AccessLocal:       "Local Access",
	AccessTransformer: "Transformer Library",
}

// AIModel describes a callable AI backend and its pricing
type AIModel struct {
	ID                   uuid.UUID       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                 string          `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description          string          `gorm:"type:text" json:"description"`
	AccessMode           string          `gorm:"size:50;not null;default:openai_api" json:"access_mode"`
	AccessEndpoint       string          `gorm:"size:255" json:"access_endpoint"`
	TokenCostPer1MInput  decimal.Decimal `gorm:"column:token_cost_per_1m_input;type:decimal(10,4);not null;default:0" json:"token_cost_per_1M_input"`
	TokenCostPer1MOutput decimal.Decimal `gorm:"column:token_cost_per_1m_output;type:decimal(10,4);not null;default:0" json:"token_cost_per_1M_output"`
	BestUseCases         string          `gorm:"type:text" json:"best_use_cases"`
	MaxTokens            int             `gorm:"not null;default:4096" json:"max_tokens"`
	IsActive             *bool           `gorm:"default:true" json:"is_active"`
	CreatedByID          *uint           `gorm:"index" json:"created_by_id"`
	ModifiedByID         *uint           `gorm:"index" json:"modified_by_id"`
	CreatedBy            *User           `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	ModifiedBy           *User           `gorm:"foreignKey:ModifiedByID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"modified_at"`
}

// TableName keeps the plural snake form explicit
func (AIModel) TableName() string { return "ai_models" }

// BeforeCreate assigns a random ID
func (m *AIModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Active reports whether the model may be used for new prompts
func (m *AIModel) Active() bool {
	return m.IsActive == nil || *m.IsActive
}

// AIModelRequest is the request body for creating/updating an AI model
type AIModelRequest struct {
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	AccessMode           string           `json:"access_mode"`
	AccessEndpoint       string           `json:"access_endpoint"`
	TokenCostPer1MInput  *decimal.Decimal `json:"token_cost_per_1M_input"`
	TokenCostPer1MOutput *decimal.Decimal `json:"token_cost_per_1M_output"`
	BestUseCases         string           `json:"best_use_cases"`
	MaxTokens            *int             `json:"max_tokens"`
	IsActive             *bool            `json:"is_active"`
}
