package spotify

// Web API payloads. Only the fields the backend reads are declared.

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type Followers struct {
	Total *int `json:"total"`
}

// SimpleArtist is the artist object embedded in tracks.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Artist struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Popularity *int       `json:"popularity"`
	Followers  *Followers `json:"followers"`
	Genres     []string   `json:"genres"`
}

type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

type Track struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Popularity  *int              `json:"popularity"`
	IsPlayable  *bool             `json:"is_playable"`
	ExternalIDs map[string]string `json:"external_ids"`
	Artists     []SimpleArtist    `json:"artists"`
	Album       *Album            `json:"album"`
}

// ImageURL returns the medium album cover when available, else the first one.
func (t *Track) ImageURL() string {
	if t.Album == nil || len(t.Album.Images) == 0 {
		return ""
	}
	if len(t.Album.Images) > 1 {
		return t.Album.Images[1].URL
	}
	return t.Album.Images[0].URL
}

type Context struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// PlayHistory is one item of the recently played endpoint.
type PlayHistory struct {
	Track    *Track   `json:"track"`
	PlayedAt string   `json:"played_at"`
	Context  *Context `json:"context"`
}

type Cursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

type RecentlyPlayedPage struct {
	Items   []PlayHistory `json:"items"`
	Next    string        `json:"next"`
	Cursors *Cursors      `json:"cursors"`
	Limit   int           `json:"limit"`
}

type severalArtistsResponse struct {
	Artists []*Artist `json:"artists"`
}

type PlaylistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Playlist struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Public *bool         `json:"public"`
	Owner  PlaylistOwner `json:"owner"`
}

type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

type PlaylistTracksPage struct {
	Items  []PlaylistItem `json:"items"`
	Next   string         `json:"next"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
