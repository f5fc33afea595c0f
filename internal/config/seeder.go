package config

import (
	"errors"
	"fmt"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/logger"
	"facture-workflow/internal/pkg/password"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedUser describes one account created by the seeder
type SeedUser struct {
	Email  string
	Nom    string
	Prenom string
	Role   domain.Role
}

// DemoUsers is one account per workflow role
var DemoUsers = []SeedUser{
	{Email: "createur@example.com", Nom: "Martin", Prenom: "Alice", Role: domain.RoleU1},
	{Email: "validateur1@example.com", Nom: "Bernard", Prenom: "Chloé", Role: domain.RoleV1},
	{Email: "validateur2@example.com", Nom: "Dubois", Prenom: "Emma", Role: domain.RoleV2},
	{Email: "tresorerie@example.com", Nom: "Haddad", Prenom: "Farid", Role: domain.RoleT1},
}

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, log: logger.Named("seeder")}
}

// Run creates the admin account and, when demo is set, one account per
// workflow role. Existing emails are left untouched.
func (s *Seeder) Run(adminEmail, adminPassword string, demo bool, demoPassword string) error {
	s.log.Info("running database seeders")

	if err := s.seedUser(SeedUser{
		Email: adminEmail,
		Nom:   "Administrateur",
		Role:  domain.RoleAdmin,
	}, adminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if demo {
		for _, u := range DemoUsers {
			if err := s.seedUser(u, demoPassword); err != nil {
				return fmt.Errorf("seed %s: %w", u.Email, err)
			}
		}
	}

	s.log.Info("database seeding completed")
	return nil
}

func (s *Seeder) seedUser(u SeedUser, plain string) error {
	if len(plain) < password.MinLength {
		return fmt.Errorf("password must be at least %d characters", password.MinLength)
	}

	var existing models.User
	err := s.db.Unscoped().Where("email = ?", u.Email).First(&existing).Error
	if err == nil {
		s.log.Debug("user already exists", zap.String("email", u.Email))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(plain)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:    u.Email,
		Password: hashed,
		Nom:      u.Nom,
		Prenom:   u.Prenom,
		Role:     string(u.Role),
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return err
	}

	s.log.Info("user created", zap.String("email", u.Email), zap.String("role", user.Role))
	return nil
}
