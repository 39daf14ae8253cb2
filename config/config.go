package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"zapflow/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// EvolutionConfig holds the credentials for the outbound WhatsApp
// gateway (Evolution API).
type EvolutionConfig struct {
	URL          string `json:"url"`
	APIKey       string `json:"-"`
	Instance     string `json:"instance"`
	WebhookToken string `json:"-"`
}

type Config struct {
	Environment     string          `json:"environment"`
	ServerPort      string          `json:"server_port"`
	EncryptionKey   string          `json:"-"`
	DBHost          string          `json:"db_host"`
	DBPort          string          `json:"db_port"`
	DBUser          string          `json:"db_user"`
	DBPassword      string          `json:"-"`
	DBName          string          `json:"db_name"`
	DBSSLMode       string          `json:"db_ssl_mode"`
	DBMaxIdleConns  int             `json:"db_max_idle_conns"`
	DBMaxOpenConns  int             `json:"db_max_open_conns"`
	Evolution       EvolutionConfig `json:"evolution"`
	DefaultColumnID string          `json:"default_column_id"`
	SentryDSN       string          `json:"-"`
	RateLimitSend   int             `json:"rate_limit_send"`
	Redis           RedisConfig     `json:"redis"`
	AdminEmail      string          `json:"admin_email"`
	AdminPassword   string          `json:"-"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "3001"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "zapflow"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		Evolution: EvolutionConfig{
			URL:          getEnv("EVOLUTION_API_URL", ""),
			APIKey:       getEnv("EVOLUTION_API_TOKEN", ""),
			Instance:     getEnv("EVOLUTION_INSTANCE", "zapflow_main"),
			WebhookToken: getEnv("EVOLUTION_WEBHOOK_TOKEN", ""),
		},
		DefaultColumnID: getEnv("DEFAULT_COLUMN_ID", "leads"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		RateLimitSend:   getEnvAsInt("RATE_LIMIT_SEND_PER_MINUTE", 60),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@zapflow.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.Evolution.URL == "" || AppConfig.Evolution.APIKey == "" {
			return fmt.Errorf("Evolution API credentials are required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("✅ Database migration completed")

	if err := SeedDefaults(DB); err != nil {
		return fmt.Errorf("database seeding failed: %w", err)
	}
	return nil
}

// MigrateDB applies the schema for every entity the sync core owns.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Column{},
		&models.Contact{},
		&models.Tag{},
		&models.Message{},
		&models.Broadcast{},
		&models.BroadcastRecipient{},
	)
}

// SeedDefaults creates the stock pipeline columns and, when the users
// table is empty, a default admin operator. Safe to run on every boot.
func SeedDefaults(db *gorm.DB) error {
	columns := []models.Column{
		{ID: "fixa", Title: "FIXA", Color: "bg-emerald-500", DisplayOrder: 0},
		{ID: "leads", Title: "Leads", Color: "bg-emerald-600", DisplayOrder: 1},
		{ID: "negociando", Title: "Negociando", Color: "bg-teal-600", DisplayOrder: 2},
		{ID: "ganhou", Title: "Ganhou", Color: "bg-teal-700", DisplayOrder: 3},
	}
	for _, col := range columns {
		var existing models.Column
		if err := db.Where("id = ?", col.ID).First(&existing).Error; err == gorm.ErrRecordNotFound {
			if err := db.Create(&col).Error; err != nil {
				return fmt.Errorf("failed to seed column %s: %w", col.ID, err)
			}
		}
	}

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount == 0 && AppConfig.AdminPassword != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(AppConfig.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.User{
			Name:     "Admin ZapFlow",
			Email:    AppConfig.AdminEmail,
			Password: string(hashed),
			IsActive: true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		log.Printf("👤 Seeded admin user %s", admin.Email)
	}
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Evolution API: configured(%t) instance(%s)",
		AppConfig.Evolution.URL != "" && AppConfig.Evolution.APIKey != "",
		AppConfig.Evolution.Instance)
}
