// Command seed creates the default admin, two sample professors and the
// initial catalog. Running it again only adds what is missing.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/database"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/service"
)

var (
	laboratories = []string{"Computer Lab 1", "Chemistry Lab", "Physics Lab"}
	timeSlots    = [][2]string{
		{"08:00", "10:00"},
		{"10:00", "12:00"},
		{"14:00", "16:00"},
		{"16:00", "18:00"},
		{"19:00", "21:00"},
		{"21:00", "23:00"},
	}
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	accounts := service.NewAccountService(db, cfg.BcryptCost, cfg.DefaultProfessorPassword, logger)
	catalog := service.NewCatalogService(db, logger)

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123"
	}
	users := []struct {
		name, email, role, password string
		firstAccess                 bool
	}{
		{"Administrator", "admin@etegec.com", model.RoleAdmin, adminPassword, false},
		{"Prof. John Silva", "john@etegec.com", model.RoleProfessor, cfg.DefaultProfessorPassword, true},
		{"Prof. Mary Santos", "mary@etegec.com", model.RoleProfessor, cfg.DefaultProfessorPassword, true},
	}
	for _, u := range users {
		got, created, err := accounts.EnsureUser(ctx, u.name, u.email, u.role, u.password, u.firstAccess)
		if err != nil {
			logger.Fatal("seed user failed", zap.String("email", u.email), zap.Error(err))
		}
		logger.Info("user", zap.String("email", got.Email), zap.String("role", got.Role), zap.Bool("created", created))
	}

	labs, err := catalog.ListLaboratories(ctx)
	if err != nil {
		logger.Fatal("list laboratories failed", zap.Error(err))
	}
	if len(labs) == 0 {
		for _, name := range laboratories {
			if _, err := catalog.CreateLaboratory(ctx, name); err != nil {
				logger.Fatal("seed laboratory failed", zap.String("name", name), zap.Error(err))
			}
		}
		logger.Info("laboratories created", zap.Int("count", len(laboratories)))
	}

	slots, err := catalog.ListTimeSlots(ctx)
	if err != nil {
		logger.Fatal("list time slots failed", zap.Error(err))
	}
	if len(slots) == 0 {
		for _, s := range timeSlots {
			if _, err := catalog.CreateTimeSlot(ctx, s[0], s[1]); err != nil {
				logger.Fatal("seed time slot failed", zap.String("start", s[0]), zap.Error(err))
			}
		}
		logger.Info("time slots created", zap.Int("count", len(timeSlots)))
	}
	logger.Info("seed complete")
}
