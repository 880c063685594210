package server

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/auth"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/models"
)

// DemoPassword is the password of every seeded account
const DemoPassword = "santateresa"

type seedUser struct {
	email  string
	name   string
	role   string
	stores []string
	grants []string
}

var (
	seedStores = []models.Store{
		{Name: "Tienda Centro", Address: "Av. Principal 120"},
		{Name: "Tienda Norte", Address: "Calle Los Olivos 45"},
	}

	seedUsers = []seedUser{
		{
			email:  "ana@santateresa.pe",
			name:   "Ana Quispe",
			role:   "admin",
			stores: []string{"Tienda Centro", "Tienda Norte"},
			grants: []string{"sales:read", "sales:write", "products:read", "products:write", "inventory:read", "users:manage"},
		},
		{
			email:  "luis@santateresa.pe",
			name:   "Luis Mamani",
			role:   "staff",
			stores: []string{"Tienda Centro"},
			grants: []string{"sales:read"},
		},
	}

	seedRecords = map[string]map[string][]string{
		"Tienda Centro": {
			"sales": {
				`{"id":"V-0001","total":42.5,"items":3}`,
				`{"id":"V-0002","total":18.0,"items":1}`,
			},
			"products": {
				`{"sku":"PAN-001","name":"Pan de yema","price":0.5}`,
				`{"sku":"QUE-010","name":"Queso fresco","price":12.0}`,
			},
			"inventory": {
				`{"sku":"PAN-001","quantity":240}`,
			},
		},
		"Tienda Norte": {
			"sales": {
				`{"id":"V-1001","total":7.5,"items":2}`,
			},
			"products": {
				`{"sku":"MIE-002","name":"Miel de abeja","price":25.0}`,
			},
		},
	}
)

// Seed fills an empty database with demo stores, accounts and records. It is
// a no-op once any user exists.
func Seed(db *gorm.DB, log zerolog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]models.Store, len(seedStores))
		for _, st := range seedStores {
			if err := tx.Create(&st).Error; err != nil {
				return fmt.Errorf("failed to create store %s: %w", st.Name, err)
			}
			byName[st.Name] = st
		}

		for _, su := range seedUsers {
			user := models.User{
				Email:        su.email,
				PasswordHash: hash,
				Name:         su.name,
				Role:         su.role,
			}
			for _, name := range su.stores {
				user.Stores = append(user.Stores, byName[name])
			}
			for _, p := range su.grants {
				user.Grants = append(user.Grants, models.Grant{Permission: p})
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user %s: %w", su.email, err)
			}
		}

		for storeName, resources := range seedRecords {
			for resource, docs := range resources {
				for _, doc := range docs {
					rec := models.Record{StoreID: byName[storeName].ID, Resource: resource, Data: doc}
					if err := tx.Create(&rec).Error; err != nil {
						return fmt.Errorf("failed to create record: %w", err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, su := range seedUsers {
		log.Info().
			Str("email", su.email).
			Str("password", DemoPassword).
			Str("role", su.role).
			Msg("Seeded demo account")
	}

	return nil
}
