package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"codecollab/internal/models"
)

const DefaultHistoryLimit = 50

var (
	ErrDuplicateSession = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found or inactive")
	ErrInvalidMessage   = errors.New("message must not be empty")
)

// Store persists collaboration sessions and their chat history.
// Each write is a single statement; callers get no atomicity across calls.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

// appendMessageSQL inserts only while the session is active, in one statement.
const appendMessageSQL = `INSERT INTO collaboration_messages (session_id, sender, message, "timestamp")
SELECT ?, ?, ?, CURRENT_TIMESTAMP
WHERE EXISTS (SELECT 1 FROM collaboration_sessions WHERE id = ? AND active = ?)
RETURNING id`

// newGormLogger keeps slow queries and real errors but drops the expected
// "record not found" noise from first-join lookups.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open connects to the given driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return open(dialector, newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)))
}

func open(dialector gorm.Dialector, gormLogger logger.Interface) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// sqlite serialises writers anyway; a single connection avoids "database is locked".
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return New(db), nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Session{}, &models.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession inserts a new active session. It never updates an existing row.
func (s *Store) CreateSession(ctx context.Context, id, creatorName string) error {
	row := models.Session{
		ID:          id,
		CreatorName: creatorName,
		Language:    models.DefaultLanguage,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("create session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateSession
	}
	return nil
}

// GetActiveSession returns ErrSessionNotFound for unknown and ended sessions alike.
func (s *Store) GetActiveSession(ctx context.Context, id string) (*models.Session, error) {
	var row models.Session
	err := s.DB.WithContext(ctx).First(&row, "id = ? AND active = ?", id, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &row, nil
}

// GetSession returns the row whatever its active flag.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var row models.Session
	err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &row, nil
}

// UpdateCode affects zero rows for unknown or ended sessions, which is not an error.
func (s *Store) UpdateCode(ctx context.Context, id, code, language string) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"code": code, "language": language}).Error
	if err != nil {
		return fmt.Errorf("update code %s: %w", id, err)
	}
	return nil
}

// EndSession is idempotent.
func (s *Store) EndSession(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	return nil
}

// AppendMessage stores message under an active session. Unknown and ended
// sessions return ErrSessionNotFound and nothing is written.
func (s *Store) AppendMessage(ctx context.Context, id, sender, message string) (*models.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrInvalidMessage
	}
	var ids []uint
	err := s.DB.WithContext(ctx).Raw(appendMessageSQL, id, sender, message, id, true).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("append message %s: %w", id, err)
	}
	if len(ids) == 0 {
		return nil, ErrSessionNotFound
	}

	var row models.ChatMessage
	if err := s.DB.WithContext(ctx).First(&row, ids[0]).Error; err != nil {
		return nil, fmt.Errorf("read message %s: %w", id, err)
	}
	return &row, nil
}

// ListMessages returns at most limit of the most recent messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, id string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs := []models.ChatMessage{}
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", id).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", id, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
