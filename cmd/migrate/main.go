// Migrate creates or updates the schema, re-hashes any plain-text passwords
// and optionally seeds the first admin account.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	seedAdmin := flag.Bool("seed-admin", false, "create an active admin from ADMIN_EMAIL / ADMIN_PASSWORD when none exists")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	settings := config.Load()
	_, logger := config.InitLogging(settings.IsProduction())
	defer logger.Sync()

	// Initialize database
	config.InitDB(settings)
	if err := config.DB.AutoMigrate(models.All()...); err != nil {
		logger.Fatalw("Failed to migrate schema", "error", err)
	}
	logger.Infow("Schema migrated", "tables", len(models.All()))

	rehashPasswords()

	if *seedAdmin {
		seedFirstAdmin()
	}
	logger.Infow("Migration completed")
}

func rehashPasswords() {
	var users []models.User
	if err := config.DB.Find(&users).Error; err != nil {
		config.Log.Fatalw("Failed to fetch users", "error", err)
	}

	for _, user := range users {
		if user.Password == "" || utils.IsBcryptHash(user.Password) {
			continue
		}

		hashedPassword, err := utils.HashPassword(user.Password)
		if err != nil {
			config.Log.Warnw("Failed to hash password", "email", user.Email, "error", err)
			continue
		}
		if err := config.DB.Model(&user).Update("password", hashedPassword).Error; err != nil {
			config.Log.Warnw("Failed to update password", "email", user.Email, "error", err)
			continue
		}
		config.Log.Infow("Re-hashed password", "email", user.Email)
	}
}

func seedFirstAdmin() {
	var n int64
	if err := config.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
		config.Log.Fatalw("Failed to count admins", "error", err)
	}
	if n > 0 {
		config.Log.Infow("Admin already exists, skipping seed")
		return
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if !utils.ValidateEmail(email) {
		config.Log.Fatalw("ADMIN_EMAIL must be a valid email")
	}
	if ok, msg := utils.ValidatePassword(password); !ok {
		config.Log.Fatalw("ADMIN_PASSWORD rejected", "reason", msg)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		config.Log.Fatalw("Failed to hash admin password", "error", err)
	}
	admin := &models.User{
		Name:     "System Administrator",
		Email:    email,
		Password: hashed,
		Role:     models.RoleAdmin,
		Status:   models.UserActive,
	}
	if err := config.DB.Create(admin).Error; err != nil {
		config.Log.Fatalw("Failed to create admin", "error", err)
	}
	config.Log.Infow("Seeded admin account", "email", email)
}
