package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Walrus/app/models"
)

// inChunk bounds the size of IN (...) lists.
const inChunk = 500

const insertBatch = 200

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}

// CreateArtistsIgnoringConflicts inserts artists; rows already present are left untouched.
// IDs on the input slice are not reliable afterwards, re-query instead.
func (r *catalogRepository) CreateArtistsIgnoringConflicts(artists []models.Artist) error {
	if len(artists) == 0 {
		return nil
	}
	return r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&artists, insertBatch).Error
}

func (r *catalogRepository) FindArtistsByExternalIDs(providerID uint, externalIDs []string) (map[string]models.Artist, error) {
	out := make(map[string]models.Artist, len(externalIDs))
	for _, chunk := range chunkStrings(externalIDs, inChunk) {
		var artists []models.Artist
		if err := r.db.Where("provider_id = ? AND external_id IN ?", providerID, chunk).Find(&artists).Error; err != nil {
			return nil, err
		}
		for _, a := range artists {
			out[a.ExternalID] = a
		}
	}
	return out, nil
}

func (r *catalogRepository) GetArtistsByIDs(ids []uint) ([]models.Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var artists []models.Artist
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&artists).Error
	return artists, err
}

func (r *catalogRepository) UpdateArtistDetails(artist *models.Artist) error {
	return r.db.Model(&models.Artist{}).
		Where("id = ?", artist.ID).
		Updates(map[string]interface{}{
			"name":            artist.Name,
			"popularity":      artist.Popularity,
			"followers_count": artist.FollowersCount,
		}).Error
}

func (r *catalogRepository) ListArtistIDsMissingDetails(providerID uint, limit int) ([]uint, error) {
	q := r.db.Model(&models.Artist{}).
		Where("provider_id = ?", providerID).
		Where("popularity IS NULL OR followers_count IS NULL OR name = ''").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uint
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (r *catalogRepository) CreateTracksIgnoringConflicts(tracks []models.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&tracks, insertBatch).Error
}

func (r *catalogRepository) FindTracksByExternalIDs(providerID uint, externalIDs []string) (map[string]models.Track, error) {
	out := make(map[string]models.Track, len(externalIDs))
	for _, chunk := range chunkStrings(externalIDs, inChunk) {
		var tracks []models.Track
		if err := r.db.Where("provider_id = ? AND external_id IN ?", providerID, chunk).Find(&tracks).Error; err != nil {
			return nil, err
		}
		for _, t := range tracks {
			out[t.ExternalID] = t
		}
	}
	return out, nil
}

// LinkTrackArtists inserts missing track_artists rows for trackID -> artistIDs.
func (r *catalogRepository) LinkTrackArtists(links map[uint][]uint) error {
	var rows []map[string]interface{}
	for trackID, artistIDs := range links {
		for _, artistID := range artistIDs {
			rows = append(rows, map[string]interface{}{
				"track_id":  trackID,
				"artist_id": artistID,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.Table("track_artists").
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatch).Error
}

func (r *catalogRepository) EnsureGenres(providerID uint, names []string) (map[string]models.Genre, error) {
	out := make(map[string]models.Genre, len(names))
	if len(names) == 0 {
		return out, nil
	}
	genres := make([]models.Genre, 0, len(names))
	for _, n := range names {
		genres = append(genres, models.Genre{Name: n, ProviderID: providerID})
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&genres, insertBatch).Error; err != nil {
		return nil, err
	}
	for _, chunk := range chunkStrings(names, inChunk) {
		var found []models.Genre
		if err := r.db.Where("provider_id = ? AND name IN ?", providerID, chunk).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, g := range found {
			out[g.Name] = g
		}
	}
	return out, nil
}

func (r *catalogRepository) ReplaceArtistGenres(artistID uint, genres []models.Genre) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM artist_genres WHERE artist_id = ?", artistID).Error; err != nil {
			return err
		}
		if len(genres) == 0 {
			return nil
		}
		rows := make([]map[string]interface{}, 0, len(genres))
		for _, g := range genres {
			rows = append(rows, map[string]interface{}{"artist_id": artistID, "genre_id": g.ID})
		}
		return tx.Table("artist_genres").
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(rows).Error
	})
}
