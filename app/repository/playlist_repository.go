package repository

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
)

type playlistRepository struct {
	db *gorm.DB
}

func NewPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &playlistRepository{db: db}
}

func (r *playlistRepository) FindByMemberAndType(memberID uint, playlistType string) (*models.Playlist, error) {
	var p models.Playlist
	err := r.db.Where("member_id = ? AND type = ?", memberID, playlistType).Order("id ASC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *playlistRepository) GetOrCreate(memberID uint, playlistType string) (*models.Playlist, bool, error) {
	found, err := r.FindByMemberAndType(memberID, playlistType)
	if err == nil {
		return found, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	p := models.Playlist{MemberID: memberID, Type: playlistType}
	if err := r.db.Create(&p).Error; err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *playlistRepository) Update(playlist *models.Playlist) error {
	return r.db.Omit("Tracks").Save(playlist).Error
}

func (r *playlistRepository) TrackExternalIDsExcludingTypes(memberID uint, types []string) ([]string, error) {
	q := r.db.Table("playlist_tracks").
		Joins("JOIN playlists ON playlists.id = playlist_tracks.playlist_id").
		Joins("JOIN tracks ON tracks.id = playlist_tracks.track_id").
		Where("playlists.member_id = ?", memberID)
	if len(types) > 0 {
		q = q.Where("playlists.type NOT IN ?", types)
	}
	var ids []string
	err := q.Distinct("tracks.external_id").Pluck("tracks.external_id", &ids).Error
	return ids, err
}

// ReplaceTracks deletes any existing rows for trackIDs, inserts them at positions
// 1..n and renumbers every row of the playlist. Rows are ordered by their
// insertion minute, newest first, then by position, so one import batch keeps
// its relative order.
func (r *playlistRepository) ReplaceTracks(playlistID uint, trackIDs []uint) (int, error) {
	seen := make(map[uint]struct{}, len(trackIDs))
	unique := make([]uint, 0, len(trackIDs))
	for _, id := range trackIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if len(unique) > 0 {
			if err := tx.Where("playlist_id = ? AND track_id IN ?", playlistID, unique).
				Delete(&models.PlaylistTrack{}).Error; err != nil {
				return err
			}

			now := time.Now().UTC()
			rows := make([]models.PlaylistTrack, 0, len(unique))
			for idx, trackID := range unique {
				rows = append(rows, models.PlaylistTrack{
					PlaylistID: playlistID,
					TrackID:    trackID,
					Position:   idx + 1,
					IsFavorite: false,
					CreatedAt:  now,
				})
			}
			if err := tx.CreateInBatches(&rows, insertBatch).Error; err != nil {
				return err
			}
		}

		var all []models.PlaylistTrack
		if err := tx.Where("playlist_id = ?", playlistID).Find(&all).Error; err != nil {
			return err
		}
		sort.SliceStable(all, func(i, j int) bool {
			mi := all[i].CreatedAt.Truncate(time.Minute)
			mj := all[j].CreatedAt.Truncate(time.Minute)
			if !mi.Equal(mj) {
				return mi.After(mj)
			}
			if all[i].Position != all[j].Position {
				return all[i].Position < all[j].Position
			}
			return all[i].ID < all[j].ID
		})
		for idx, pt := range all {
			if pt.Position == idx+1 {
				continue
			}
			if err := tx.Model(&models.PlaylistTrack{}).
				Where("id = ?", pt.ID).
				Update("position", idx+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unique), nil
}

func (r *playlistRepository) ListTracks(playlistID uint) ([]models.PlaylistTrack, error) {
	var rows []models.PlaylistTrack
	err := r.db.Preload("Track").
		Where("playlist_id = ?", playlistID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

func (r *playlistRepository) Transaction(fn func(repo PlaylistRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&playlistRepository{db: tx})
	})
}
