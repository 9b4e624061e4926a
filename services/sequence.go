package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"costtrack-backend/logger"
	"costtrack-backend/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Well-known document prefixes.
const (
	PrefixInvoice = "INV"
	PrefixPayment = "PAY"
)

// Numberer hands out the next document number for a prefix.
// *SequenceService is the production implementation.
type Numberer interface {
	Generate(ctx context.Context, prefix string) (string, error)
}

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// NormalizePrefix upper-cases and checks a document prefix.
func NormalizePrefix(prefix string) (string, error) {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(p) {
		return "", invalid("NormalizePrefix", "prefix must be 1-10 letters or digits, got %q", prefix)
	}
	return p, nil
}

// SequenceService issues document numbers. It works on its own connection:
// every Generate commits immediately, independent of any request transaction,
// so a number is never handed out twice even if the caller later rolls back.
type SequenceService struct {
	db  *gorm.DB
	now func() time.Time
	log zerolog.Logger
}

func NewSequenceService(db *gorm.DB) *SequenceService {
	return &SequenceService{
		db:  db,
		now: time.Now,
		log: logger.WithComponent("sequence"),
	}
}

// Generate allocates the next number for prefix in the current year. The
// counter row is locked FOR UPDATE, serializing concurrent callers.
func (s *SequenceService) Generate(ctx context.Context, prefix string) (string, error) {
	prefix, err := NormalizePrefix(prefix)
	if err != nil {
		return "", err
	}
	year := s.now().Year()

	var number int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := lockCounter(tx, prefix, year)
		if err != nil {
			return err
		}
		number = counter.CurrentNumber + 1
		return tx.Model(counter).Update("current_number", number).Error
	})
	if err != nil {
		return "", fmt.Errorf("generate %s number: %w", prefix, err)
	}
	return models.FormatDocumentNumber(prefix, year, number), nil
}

// lockCounter returns the locked counter row, creating it at zero first if
// needed. A concurrent creator loses the insert quietly and then waits on the
// row lock like everyone else.
func lockCounter(tx *gorm.DB, prefix string, year int) (*models.SequenceCounter, error) {
	var counter models.SequenceCounter
	err := forUpdate(tx).Where("prefix = ? AND year = ?", prefix, year).First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh := models.SequenceCounter{Prefix: prefix, Year: year}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	if err := forUpdate(tx).Where("prefix = ? AND year = ?", prefix, year).First(&counter).Error; err != nil {
		return nil, err
	}
	return &counter, nil
}

// Next previews the number Generate would return now. It takes no lock and
// may be stale by the time Generate runs.
func (s *SequenceService) Next(ctx context.Context, prefix string) (string, error) {
	prefix, err := NormalizePrefix(prefix)
	if err != nil {
		return "", err
	}
	year := s.now().Year()
	var counter models.SequenceCounter
	err = s.db.WithContext(ctx).Where("prefix = ? AND year = ?", prefix, year).Limit(1).Find(&counter).Error
	if err != nil {
		return "", fmt.Errorf("preview %s number: %w", prefix, err)
	}
	return models.FormatDocumentNumber(prefix, year, counter.CurrentNumber+1), nil
}

// Reset sets the counter for (prefix, year) back to zero. Numbers already
// issued in that year will be issued again; callers own that hazard.
func (s *SequenceService) Reset(ctx context.Context, auth AuthContext, prefix string, year int) error {
	if err := auth.require(PermResetCounters); err != nil {
		return err
	}
	prefix, err := NormalizePrefix(prefix)
	if err != nil {
		return err
	}
	if year < 1 {
		return invalid("Reset", "invalid year %d", year)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter models.SequenceCounter
		err := forUpdate(tx).Where("prefix = ? AND year = ?", prefix, year).First(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if counter.CurrentNumber > 0 {
			s.log.Warn().
				Str("prefix", prefix).
				Int("year", year).
				Int("previous", counter.CurrentNumber).
				Str("user_id", auth.UserID).
				Msg("counter reset after numbers were issued; they will be reissued")
		}
		return tx.Model(&counter).Update("current_number", 0).Error
	})
}

// List returns all counters, newest year first.
func (s *SequenceService) List(ctx context.Context) ([]models.SequenceCounter, error) {
	var counters []models.SequenceCounter
	err := s.db.WithContext(ctx).Order("year DESC, prefix").Find(&counters).Error
	return counters, err
}
