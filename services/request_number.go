package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"climate-repair-server/models"
)

const maxNumberAttempts = 5

// NumberGenerator produces request numbers of the form REQ-<yyyymmddHHMMSS>-<8 hex>.
type NumberGenerator struct {
	now    func() time.Time
	newID  func() uuid.UUID
	exists func(ctx context.Context, number string) (bool, error)
}

// NewNumberGenerator checks candidates against the repair_requests table.
func NewNumberGenerator(db *gorm.DB) *NumberGenerator {
	return &NumberGenerator{
		now:   time.Now,
		newID: uuid.New,
		exists: func(ctx context.Context, number string) (bool, error) {
			var count int64
			err := db.WithContext(ctx).Model(&models.RepairRequest{}).
				Where("number = ?", number).
				Count(&count).Error
			return count > 0, err
		},
	}
}

// Next returns a number not yet used by any request. The unique index on the
// column still guards the window between this check and the insert.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		candidate := formatNumber(g.now(), g.newID())
		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", storageError("check request number", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", storageError("generate request number", fmt.Errorf("no free number after %d attempts", maxNumberAttempts))
}

func formatNumber(at time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return fmt.Sprintf("REQ-%s-%s", at.UTC().Format("20060102150405"), suffix)
}
