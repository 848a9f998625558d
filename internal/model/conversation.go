package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat types a thread can originate from
const (
	ChatWeb = "web"
	ChatAPI = "api"
	ChatNOA = "noa"
)

// ChatTypes lists the valid chat types with their display labels
var ChatTypes = map[string]string{
	ChatWeb: "Web Chat",
	ChatAPI: "API Chat",
	ChatNOA: "NOA Chat",
}

// DefaultThreadName is used for threads created implicitly by a prompt
const DefaultThreadName = "New Conversation"

// ConversationThread groups an ordered list of prompt/response items
type ConversationThread struct {
	ID           uuid.UUID          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string             `gorm:"size:150;not null" json:"name"`
	Summary      string             `gorm:"type:text" json:"summary"`
	AIModelID    *uuid.UUID         `gorm:"column:aimodel_id;type:varchar(36);index" json:"aimodel_id"`
	AIModel      *AIModel           `gorm:"foreignKey:AIModelID;constraint:OnDelete:SET NULL" json:"aimodel,omitempty"`
	ChatType     string             `gorm:"size:10;not null;default:web;index" json:"chat_type"`
	CreatedByID  *uint              `gorm:"index" json:"created_by_id"`
	ModifiedByID *uint              `gorm:"index" json:"modified_by_id"`
	CreatedBy    *User              `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	ModifiedBy   *User              `gorm:"foreignKey:ModifiedByID;constraint:OnDelete:SET NULL" json:"-"`
	Items        []ConversationItem `gorm:"foreignKey:ConversationThreadID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"modified_at"`
}

func (ConversationThread) TableName() string { return "conversation_threads" }

func (t *ConversationThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ConversationItem is one prompt/response exchange at a position within a thread
type ConversationItem struct {
	ID                   uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationThreadID uuid.UUID `gorm:"type:varchar(36);not null;index" json:"conversation_thread_id"`
	Prompt               string    `gorm:"type:text;not null" json:"prompt"`
	Response             string    `gorm:"type:text;not null" json:"response"`
	Tokens               int       `gorm:"default:0" json:"tokens"`
	IsFullSaved          bool      `gorm:"default:false" json:"is_full_saved"`
	Order                int       `gorm:"column:order_index;not null;default:0;index" json:"order"`
	CreatedByID          *uint     `gorm:"index" json:"created_by_id"`
	ModifiedByID         *uint     `gorm:"index" json:"modified_by_id"`
	CreatedBy            *User     `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	ModifiedBy           *User     `gorm:"foreignKey:ModifiedByID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"modified_at"`
}

func (ConversationItem) TableName() string { return "conversation_items" }

func (i *ConversationItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ItemOrder is the canonical ordering for items within a thread
const ItemOrder = "order_index ASC, created_at ASC"

// ThreadInput is the request body for creating/updating a thread with its items
type ThreadInput struct {
	Name      string      `json:"name"`
	Summary   string      `json:"summary"`
	AIModelID *uuid.UUID  `json:"aimodel_id"`
	ChatType  string      `json:"chat_type"`
	Items     []ItemInput `json:"items"`
}

// ItemInput is one row of a batch item edit. ID is nil for new rows,
// Order is the submitted screen position (0 = unset, appended at the end).
type ItemInput struct {
	ID       *uuid.UUID `json:"id"`
	Prompt   string     `json:"prompt"`
	Response string     `json:"response"`
	Order    int        `json:"order"`
	Delete   bool       `json:"delete"`
}
