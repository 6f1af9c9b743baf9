package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Walrus/app/models"
)

type playLogRepository struct {
	db *gorm.DB
}

func NewPlayLogRepository(db *gorm.DB) PlayLogRepository {
	return &playLogRepository{db: db}
}

func (r *playLogRepository) findContexts(keys []ContextKey) (map[ContextKey]models.PlayLogContext, error) {
	byType := make(map[string][]string)
	for _, k := range keys {
		byType[k.Type] = append(byType[k.Type], k.ExternalID)
	}

	out := make(map[ContextKey]models.PlayLogContext, len(keys))
	for typ, ids := range byType {
		for _, chunk := range chunkStrings(ids, inChunk) {
			var found []models.PlayLogContext
			if err := r.db.Where("type = ? AND external_id IN ?", typ, chunk).Find(&found).Error; err != nil {
				return nil, err
			}
			for _, c := range found {
				out[ContextKey{Type: c.Type, ExternalID: c.ExternalID}] = c
			}
		}
	}
	return out, nil
}

func (r *playLogRepository) GetOrCreateContexts(keys []ContextKey) (map[ContextKey]models.PlayLogContext, []uint, error) {
	if len(keys) == 0 {
		return map[ContextKey]models.PlayLogContext{}, nil, nil
	}

	existing, err := r.findContexts(keys)
	if err != nil {
		return nil, nil, err
	}

	var missing []models.PlayLogContext
	seen := make(map[ContextKey]struct{})
	for _, k := range keys {
		if _, ok := existing[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		missing = append(missing, models.PlayLogContext{Type: k.Type, ExternalID: k.ExternalID})
	}
	if len(missing) == 0 {
		return existing, nil, nil
	}

	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&missing, insertBatch).Error; err != nil {
		return nil, nil, err
	}

	all, err := r.findContexts(keys)
	if err != nil {
		return nil, nil, err
	}
	var created []uint
	for k, c := range all {
		if _, ok := existing[k]; !ok {
			created = append(created, c.ID)
		}
	}
	return all, created, nil
}

func (r *playLogRepository) GetContextsByIDs(ids []uint) ([]models.PlayLogContext, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var contexts []models.PlayLogContext
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&contexts).Error
	return contexts, err
}

func (r *playLogRepository) UpdateContextDetails(id uint, details map[string]any) error {
	return r.db.Model(&models.PlayLogContext{ID: id}).
		Select("details", "updated_at").
		Updates(&models.PlayLogContext{Details: details, UpdatedAt: time.Now()}).Error
}

func (r *playLogRepository) ListContextIDsMissingDetails(contextType string, limit int) ([]uint, error) {
	q := r.db.Model(&models.PlayLogContext{}).
		Where("type = ?", contextType).
		Where("details IS NULL OR details IN ?", []string{"", "null", "{}"}).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// ExistingPlayKeys returns the keys already stored for the member within [from, to].
func (r *playLogRepository) ExistingPlayKeys(memberID, providerID uint, from, to time.Time) (map[PlayKey]struct{}, error) {
	var rows []struct {
		TrackID  uint
		PlayedAt time.Time
	}
	err := r.db.Model(&models.PlayLog{}).
		Select("track_id", "played_at").
		Where("member_id = ? AND provider_id = ? AND played_at BETWEEN ? AND ?", memberID, providerID, from.UTC(), to.UTC()).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[PlayKey]struct{}, len(rows))
	for _, row := range rows {
		out[PlayKey{TrackID: row.TrackID, PlayedAt: row.PlayedAt.UnixMilli()}] = struct{}{}
	}
	return out, nil
}

// CreateIgnoringConflicts inserts logs whose natural key is absent and returns the number inserted.
func (r *playLogRepository) CreateIgnoringConflicts(logs []models.PlayLog) (int64, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	res := r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&logs, insertBatch)
	return res.RowsAffected, res.Error
}

func (r *playLogRepository) CountByMember(memberID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.PlayLog{}).Where("member_id = ?", memberID).Count(&n).Error
	return n, err
}
