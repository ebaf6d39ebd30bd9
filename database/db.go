package database

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thread/models"
)

// Open connects to the configured engine and migrates the schema. SQLite
// stores dates as TEXT and booleans as 0/1, PostgreSQL as TIMESTAMPTZ and
// TRUE/FALSE; both are absorbed by the gorm drivers so callers only ever
// see time.Time and bool.
func Open(engine, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch engine {
	case "sqlite3":
		dialector = sqlite.Open(dsn + "?_foreign_keys=on")
	case "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db engine %q", engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", engine, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table, then seeds the code tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Attack{},
		&models.SimilarWord{},
		&models.RegexPattern{},
		&models.TruePositive{},
		&models.FalseNegative{},
		&models.FalsePositive{},
		&models.TrueNegative{},
		&models.Report{},
		&models.ReportSentence{},
		&models.ReportSentenceInitial{},
		&models.ReportSentenceHit{},
		&models.ReportSentenceHitInitial{},
		&models.OriginalHTML{},
		&models.OriginalHTMLInitial{},
		&models.ReportSentenceQueueProgress{},
		&models.IndicatorOfCompromise{},
		&models.Category{},
		&models.Region{},
		&models.Country{},
		&models.Keyword{},
		&models.ReportKeywordAssociation{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return seedCodeTables(db)
}

// Store bundles the database handle with the in-memory status cache.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger

	// seenStatus caches the last-known report status to spare listing
	// queries; invalidated on every status write.
	mu         sync.Mutex
	seenStatus map[string]models.ReportStatus
}

func NewStore(db *gorm.DB, log *zap.SugaredLogger) *Store {
	return &Store{
		db:         db,
		log:        log,
		seenStatus: make(map[string]models.ReportStatus),
	}
}

// DB exposes the underlying handle for callers composing their own queries.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) cacheStatus(uid string, status models.ReportStatus) {
	s.mu.Lock()
	s.seenStatus[uid] = status
	s.mu.Unlock()
}

func (s *Store) invalidateStatus(uid string) {
	s.mu.Lock()
	delete(s.seenStatus, uid)
	s.mu.Unlock()
}

// InvalidateStatus drops the cached status after an out-of-band write.
func (s *Store) InvalidateStatus(uid string) {
	s.invalidateStatus(uid)
}
