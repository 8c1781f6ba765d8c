package services

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"climate-repair-server/models"
	"climate-repair-server/policy"
)

// StatisticsService computes the dashboard aggregate on every call.
type StatisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

func (s *StatisticsService) Stats(ctx context.Context, actor models.Actor) (*models.Statistics, error) {
	if !policy.Can(actor.Role, policy.ViewStatistics, false) {
		return nil, forbidden("you are not allowed to view statistics")
	}

	db := s.db.WithContext(ctx)
	stats := &models.Statistics{ByClimateTechType: []models.TypeCount{}}

	if err := db.Model(&models.RepairRequest{}).Count(&stats.TotalRequests).Error; err != nil {
		return nil, storageError("count requests", err)
	}

	type span struct {
		DateAdded      time.Time
		CompletionDate *time.Time
	}
	var completed []span
	if err := db.Model(&models.RepairRequest{}).
		Select("date_added, completion_date").
		Where("request_status = ?", models.StatusCompleted).
		Scan(&completed).Error; err != nil {
		return nil, storageError("load completed requests", err)
	}
	stats.CompletedCount = int64(len(completed))

	var hours float64
	var timed int
	for _, c := range completed {
		if c.CompletionDate == nil {
			continue
		}
		hours += c.CompletionDate.Sub(c.DateAdded).Hours()
		timed++
	}
	if timed > 0 {
		stats.AverageRepairHours = roundTo(hours/float64(timed), 2)
	}

	if err := db.Model(&models.RepairRequest{}).
		Select("climate_tech_type AS type, COUNT(*) AS count").
		Group("climate_tech_type").
		Scan(&stats.ByClimateTechType).Error; err != nil {
		return nil, storageError("count by type", err)
	}
	sortTypeCounts(stats.ByClimateTechType)

	return stats, nil
}

// sortTypeCounts orders by count descending, ties broken by type name.
func sortTypeCounts(counts []models.TypeCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Type < counts[j].Type
	})
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
