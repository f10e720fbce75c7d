package database

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feedbackhq/feedback/internal/logger"
)

// DB is the global database instance
var DB *gorm.DB

const sqlitePrefix = "sqlite://"

// Open opens a database handle. DSNs prefixed with sqlite:// use SQLite,
// everything else is treated as a PostgreSQL connection string.
func Open(dsn string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Connect establishes the global database connection
func Connect(dsn string, logLevel gormlogger.LogLevel) error {
	db, err := Open(dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db

	logger.L().Info("database connection established", zap.String("dialect", db.Dialector.Name()))
	return nil
}

// ParseLogLevel maps a textual level to a GORM log level
func ParseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// IsPostgres reports whether db talks to PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// AutoMigrate runs database migrations on the global connection
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates all tables and the indexes GORM tags cannot express
func Migrate(db *gorm.DB) error {
	log := logger.L()
	log.Info("running database migrations")

	if IsPostgres(db) {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("failed to enable pgvector extension: %w", err)
		}
	}

	err := db.AutoMigrate(
		&Board{},
		&PostStatus{},
		&Post{},
		&Vote{},
		&Comment{},
		&MergeSuggestion{},
		&MergeSettings{},
		&LLMSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, stmt := range indexStatements(db) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Info("database migrations completed")
	return nil
}

// indexStatements returns dialect-specific DDL. The pending-pair index keys
// on the unordered {source, target} pair so (A,B) and (B,A) collide.
func indexStatements(db *gorm.DB) []string {
	if IsPostgres(db) {
		return []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_merge_suggestions_pending_pair
				ON merge_suggestions (LEAST(source_post_id, target_post_id), GREATEST(source_post_id, target_post_id))
				WHERE status = 'pending'`,
			`CREATE INDEX IF NOT EXISTS idx_posts_search
				ON posts USING GIN (to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')))`,
			`CREATE INDEX IF NOT EXISTS idx_posts_embedding
				ON posts USING hnsw (embedding vector_cosine_ops)`,
		}
	}
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_merge_suggestions_pending_pair
			ON merge_suggestions (min(source_post_id, target_post_id), max(source_post_id, target_post_id))
			WHERE status = 'pending'`,
	}
}

// LLMSeed carries bootstrap LLM values from the environment
type LLMSeed struct {
	Provider LLMProvider
	APIKey   string
	Model    string
	BaseURL  string
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults(db *gorm.DB, seed LLMSeed) error {
	logger.L().Info("initializing default database records")

	if err := seedLLMProviders(db, seed); err != nil {
		return fmt.Errorf("failed to seed LLM providers: %w", err)
	}

	if _, err := GetOrCreateMergeSettings(db); err != nil {
		return fmt.Errorf("failed to create default merge settings: %w", err)
	}

	return nil
}

// Default models per provider, used when seeding new provider rows.
var defaultModelsPerProvider = map[LLMProvider]string{
	LLMProviderOpenRouter: "google/gemini-2.5-flash",
	LLMProviderOpenAI:     "gpt-4.1-mini",
	LLMProviderAnthropic:  "claude-haiku-4-5",
	LLMProviderGoogle:     "gemini-2.5-flash",
}

// seedLLMProviders ensures one row per provider exists in llm_settings.
// The seed provider becomes active on a fresh database; an API key from the
// environment is only written into a row that has none.
func seedLLMProviders(db *gorm.DB, seed LLMSeed) error {
	log := logger.L()
	if seed.Provider == "" || !IsValidLLMProvider(seed.Provider) {
		seed.Provider = LLMProviderOpenRouter
	}

	var count int64
	if err := db.Model(&LLMSettings{}).Count(&count).Error; err != nil {
		return err
	}
	fresh := count == 0

	for _, p := range ValidLLMProviders() {
		var existing LLMSettings
		err := db.Where("provider = ?", p).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			if p == seed.Provider && existing.APIKey == "" && seed.APIKey != "" {
				existing.APIKey = seed.APIKey
				existing.Enabled = true
				if seed.Model != "" {
					existing.Model = seed.Model
				}
				if seed.BaseURL != "" {
					existing.BaseURL = seed.BaseURL
				}
				if err := db.Save(&existing).Error; err != nil {
					return fmt.Errorf("failed to update LLM settings for %s: %w", p, err)
				}
				log.Info("applied LLM credentials from environment", zap.String("provider", string(p)))
			}
			continue
		}

		row := &LLMSettings{
			Provider: p,
			Model:    defaultModelsPerProvider[p],
			Active:   fresh && p == seed.Provider,
		}
		if p == seed.Provider {
			row.APIKey = seed.APIKey
			row.Enabled = seed.APIKey != ""
			row.BaseURL = seed.BaseURL
			if seed.Model != "" {
				row.Model = seed.Model
			}
		}
		if err := db.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create LLM settings for %s: %w", p, err)
		}
		log.Info("created LLM settings", zap.String("provider", string(p)), zap.Bool("active", row.Active))
	}

	var active int64
	db.Model(&LLMSettings{}).Where("active = ?", true).Count(&active)
	if active == 0 {
		if err := db.Model(&LLMSettings{}).Where("provider = ?", seed.Provider).Update("active", true).Error; err != nil {
			return err
		}
		log.Info("marked provider as active", zap.String("provider", string(seed.Provider)))
	}

	return nil
}

// GetActiveLLMSettings returns the provider row marked active
func GetActiveLLMSettings(db *gorm.DB) (*LLMSettings, error) {
	var settings LLMSettings
	if err := db.Where("active = ?", true).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetAllLLMSettings returns every provider row
func GetAllLLMSettings(db *gorm.DB) ([]LLMSettings, error) {
	var settings []LLMSettings
	if err := db.Order("id").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// GetLLMSettingsByProvider returns the row for one provider
func GetLLMSettingsByProvider(db *gorm.DB, provider LLMProvider) (*LLMSettings, error) {
	var settings LLMSettings
	if err := db.Where("provider = ?", provider).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetActiveLLMProvider marks provider active and every other row inactive
func SetActiveLLMProvider(db *gorm.DB, provider LLMProvider) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&LLMSettings{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&LLMSettings{}).Where("provider = ?", provider).Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// GetOrCreateMergeSettings retrieves or creates merge settings (singleton).
// Accepts a db parameter so callers can pass a transaction or a test database.
func GetOrCreateMergeSettings(db *gorm.DB) (*MergeSettings, error) {
	var settings MergeSettings
	result := db.First(&settings)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		settings = *NewDefaultMergeSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// SeedMergeSettings creates the settings row with the given sweep interval
// when none exists yet. An existing row is returned untouched.
func SeedMergeSettings(db *gorm.DB, sweepIntervalMinutes int) (*MergeSettings, error) {
	var count int64
	if err := db.Model(&MergeSettings{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return GetOrCreateMergeSettings(db)
	}

	settings := NewDefaultMergeSettings()
	if sweepIntervalMinutes > 0 {
		settings.SweepIntervalMinutes = sweepIntervalMinutes
	}
	if err := db.Create(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateMergeSettings persists every field of settings
func UpdateMergeSettings(db *gorm.DB, settings *MergeSettings) error {
	return db.Save(settings).Error
}

// GetDB returns the global database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
