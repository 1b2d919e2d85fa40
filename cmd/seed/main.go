package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"saladas-service/config"
	"saladas-service/internal/auth"
	"saladas-service/internal/models"
	"saladas-service/internal/store"
	"saladas-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedUser struct {
	email    string
	name     string
	profile  models.Profile
	withShop bool
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "saladas123"
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	profiles := map[models.Profile]int64{}
	for _, p := range []models.Profile{models.ProfileAdmin, models.ProfileProduction, models.ProfileStore} {
		id, err := db.EnsureProfile(ctx, p)
		if err != nil {
			logger.Fatal("Failed to seed profile", zap.String("profile", string(p)), zap.Error(err))
		}
		profiles[p] = id
	}

	storeID, err := db.EnsureStore(ctx, "Loja Centro")
	if err != nil {
		logger.Fatal("Failed to seed store", zap.Error(err))
	}

	salads := []models.SaladType{
		{Name: "Caesar", SalePrice: decimal.RequireFromString("14.50"), ValidityDays: 3, RequiresSauce: true},
		{Name: "Caprese", SalePrice: decimal.RequireFromString("12.50"), ValidityDays: 2},
		{Name: "Tropical", SalePrice: decimal.RequireFromString("13.00"), ValidityDays: 2},
		{Name: "Verde", SalePrice: decimal.RequireFromString("10.00"), ValidityDays: 3},
	}
	for i := range salads {
		if err := db.UpsertSaladType(ctx, &salads[i]); err != nil {
			logger.Fatal("Failed to seed salad type", zap.String("name", salads[i].Name), zap.Error(err))
		}
	}

	sauces := []models.Sauce{
		{Name: "Caesar", Price: decimal.Zero},
		{Name: "Mostarda e mel", Price: decimal.RequireFromString("1.50")},
		{Name: "Iogurte", Price: decimal.RequireFromString("1.00")},
	}
	for i := range sauces {
		if err := db.UpsertSauce(ctx, &sauces[i]); err != nil {
			logger.Fatal("Failed to seed sauce", zap.String("name", sauces[i].Name), zap.Error(err))
		}
	}

	hasher := auth.NewBcryptHasher()
	hash, err := hasher.Hash(password)
	if err != nil {
		logger.Fatal("Failed to hash password", zap.Error(err))
	}

	users := []seedUser{
		{email: "admin@saladas.local", name: "Administrador", profile: models.ProfileAdmin},
		{email: "producao@saladas.local", name: "Producao", profile: models.ProfileProduction},
		{email: "loja@saladas.local", name: "Loja Centro", profile: models.ProfileStore, withShop: true},
	}
	for _, u := range users {
		user := &models.User{
			Email:        u.email,
			FullName:     u.name,
			PasswordHash: hash,
			ProfileID:    profiles[u.profile],
		}
		if u.withShop {
			user.StoreID = sql.NullInt64{Int64: storeID, Valid: true}
		}
		if err := db.UpsertUser(ctx, user); err != nil {
			logger.Fatal("Failed to seed user", zap.String("email", u.email), zap.Error(err))
		}
	}

	logger.Info("Seed completed",
		zap.Int64("store_id", storeID),
		zap.Int("salad_types", len(salads)),
		zap.Int("sauces", len(sauces)),
		zap.Int("users", len(users)))
}
