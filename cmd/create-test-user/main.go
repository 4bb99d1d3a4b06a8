package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"regulaite-backend/bootstrap"
	"regulaite-backend/config"
	"regulaite-backend/models"
	"regulaite-backend/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if !config.LoadDotEnv() {
		logger.Warn("No .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := bootstrap.OpenDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)

	// Create a pilot user; arguments override the defaults
	username := "pilot"
	password := "pilotpassword123"
	displayName := "Pilot User"
	if len(os.Args) > 1 {
		username = os.Args[1]
	}
	if len(os.Args) > 2 {
		password = os.Args[2]
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("Failed to hash password", zap.Error(err))
	}

	// Existing users get their password reset
	existing, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if err := users.UpdatePassword(ctx, username, string(hashedPassword)); err != nil {
			logger.Fatal("Failed to reset password", zap.Error(err))
		}
		fmt.Printf("✅ Password reset for existing user %s (ID: %s)\n", username, existing.ID)
		return
	case !errors.Is(err, repository.ErrUserNotFound):
		logger.Fatal("Failed to look up user", zap.Error(err))
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		DisplayName:  &displayName,
	}
	if err := users.Create(ctx, user); err != nil {
		logger.Fatal("Failed to create user", zap.Error(err))
	}

	fmt.Printf("✅ Test user created successfully!\n")
	fmt.Printf("   ID: %s\n", user.ID)
	fmt.Printf("   Username: %s\n", username)
	fmt.Printf("   Password: %s\n", password)
	fmt.Printf("   Name: %s\n", displayName)
}
