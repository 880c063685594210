package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User represents a gateway account
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name"`
	Role         string    `json:"role" gorm:"not null;default:staff"` // "admin" or "staff"
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Stores []Store `json:"stores,omitempty" gorm:"many2many:user_stores;constraint:OnDelete:CASCADE"`
	Grants []Grant `json:"grants,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// IsAdmin reports whether the user may manage other users
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// StoreIDs returns the IDs of the stores the user operates on. Stores must be preloaded.
func (u *User) StoreIDs() []string {
	ids := make([]string, len(u.Stores))
	for i, s := range u.Stores {
		ids[i] = s.ID
	}
	return ids
}

// Permissions returns the user's capability names. Grants must be preloaded.
func (u *User) Permissions() []string {
	perms := make([]string, len(u.Grants))
	for i, g := range u.Grants {
		perms[i] = g.Permission
	}
	return perms
}

// Store represents a physical location with its own data
type Store struct {
	BaseModel
	Name    string `json:"name" gorm:"unique;not null"`
	Address string `json:"address"`
}

// Grant gives a user one capability, named "module:action" (e.g. "sales:read")
type Grant struct {
	BaseModel
	UserID     string `json:"user_id" gorm:"not null;uniqueIndex:idx_user_permission"`
	Permission string `json:"permission" gorm:"not null;uniqueIndex:idx_user_permission"`
}

// Record is one opaque business document of a store (a sale, a product...)
type Record struct {
	BaseModel
	StoreID  string `json:"store_id" gorm:"not null;index:idx_store_resource"`
	Resource string `json:"resource" gorm:"not null;index:idx_store_resource"`
	Data     string `json:"data" gorm:"type:text;not null"` // JSON document

	// Relationships
	Store Store `json:"-" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Store{}, &User{}, &Grant{}, &Record{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
