package models

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Asset statuses form a closed set; anything else is rejected at the handler.
const (
	StatusInOperation   = "InOperation"
	StatusInMaintenance = "InMaintenance"
	StatusOutOfService  = "OutOfService"
	StatusAwaitingParts = "AwaitingParts"
)

const (
	EventCorrectiveMaintenance = "CorrectiveMaintenance"
	EventPreventiveMaintenance = "PreventiveMaintenance"
	EventStatusChange          = "StatusChange"
	EventLocationChange        = "LocationChange"
	EventNote                  = "Note"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusInOperation, StatusInMaintenance, StatusOutOfService, StatusAwaitingParts:
		return true
	}
	return false
}

func ValidEventType(s string) bool {
	switch s {
	case EventCorrectiveMaintenance, EventPreventiveMaintenance, EventStatusChange, EventLocationChange, EventNote:
		return true
	}
	return false
}

func ValidRole(s string) bool {
	return s == RoleAdmin || s == RoleUser
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

// Category owns one identifier prefix and exactly one counter. Name is the
// only mutable field: prefix and counter binding stay fixed for the life of
// the category so already-issued asset identifiers keep their uniqueness.
type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"unique;not null"          json:"name"`
	Prefix      string `gorm:"unique;not null"          json:"prefix"`
	CounterName string `gorm:"not null"                 json:"-"`
}

// Counter is a first-class transactional row, not a store-level sequence
// object. Value holds the last issued number; the first allocation returns 1.
type Counter struct {
	Name  string `gorm:"primaryKey"         json:"name"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}

type Asset struct {
	ID              string         `gorm:"primaryKey"     json:"id"`
	Name            string         `gorm:"not null"       json:"name"`
	Description     string         `json:"description"`
	SerialNumber    string         `json:"serial_number"`
	Model           string         `gorm:"not null"       json:"model"`
	Location        string         `gorm:"not null"       json:"location"`
	Status          string         `gorm:"not null"       json:"status"`
	AcquisitionDate string         `gorm:"not null"       json:"acquisition_date"`
	WarrantyInfo    string         `json:"warranty_info"`
	AssignedUser    string         `json:"assigned_user"`
	CategoryID      uint           `gorm:"index;not null" json:"category_id"`
	LastModifiedAt  time.Time      `json:"last_modified_at"`
	LastModifiedBy  string         `json:"last_modified_by"`
	History         []HistoryEntry `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

// HistoryEntry is append-only: never updated or deleted on its own, removed
// only together with its asset. Timestamp is always server-assigned.
type HistoryEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AssetID     string    `gorm:"index;not null"           json:"asset_id"`
	EventType   string    `gorm:"not null"                 json:"event_type"`
	Description string    `gorm:"not null"                 json:"description"`
	Timestamp   time.Time `gorm:"not null"                 json:"timestamp"`
	ActorID     uint      `json:"actor_id,omitempty"`
	ActorName   string    `json:"actor_name,omitempty"`
}
