package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	ActionCreate   AuditAction = "CREATE"
	ActionUpdate   AuditAction = "UPDATE"
	ActionDelete   AuditAction = "DELETE"
	ActionLogin    AuditAction = "LOGIN"
	ActionRegister AuditAction = "REGISTER"
)

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionRegister:
		return true
	}
	return false
}

type EntityType string

const (
	EntityUser    EntityType = "USER"
	EntityProduct EntityType = "PRODUCT"
)

func (e EntityType) Valid() bool {
	return e == EntityUser || e == EntityProduct
}

// AuditEntry is an immutable record of a mutating action. Entries are only ever
// inserted; nothing updates or deletes them.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ActorID    uuid.UUID      `json:"actorId" gorm:"type:uuid;not null;index"`
	ActorEmail string         `json:"actorEmail" gorm:"not null"`
	Action     AuditAction    `json:"action" gorm:"type:varchar(32);not null;index"`
	EntityType EntityType     `json:"entityType" gorm:"type:varchar(32);not null;index"`
	EntityID   *uuid.UUID     `json:"entityId,omitempty" gorm:"type:uuid"`
	Details    *string        `json:"details,omitempty" gorm:"type:text"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	Timestamp  time.Time      `json:"timestamp" gorm:"column:occurred_at;not null;index"`
}

type AuditFilter struct {
	ActorID    *uuid.UUID
	Action     AuditAction
	EntityType EntityType
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type AuditStats struct {
	ActionStats   []CountByKey `json:"actionStats"`
	EntityStats   []CountByKey `json:"entityStats"`
	DailyActivity []DailyCount `json:"dailyActivity"`
	TotalLogs     int64        `json:"totalLogs"`
}
