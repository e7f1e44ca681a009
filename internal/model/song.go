package model

import (
	"strings"
	"time"
)

// Song is a piece in the choir's library. Category is optional.
type Song struct {
	ID          int64
	UUID        string
	Name        string
	Category    *string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Assets is populated only by queries that load them.
	Assets []SongAsset
}

// AssetType is the declared kind of a song asset.
type AssetType string

const (
	AssetAudio    AssetType = "mp3"
	AssetVideo    AssetType = "mp4"
	AssetDocument AssetType = "pdf"
)

// AssetTypes lists every accepted asset type.
var AssetTypes = []AssetType{AssetAudio, AssetVideo, AssetDocument}

// ParseAssetType validates s against the closed set of asset types.
func ParseAssetType(s string) (AssetType, bool) {
	t := AssetType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AssetTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// SongAsset is a stored file attached to a song. Path is the key of the
// file in storage, relative to the storage root.
type SongAsset struct {
	ID        int64
	UUID      string
	SongID    int64
	Name      string
	Type      AssetType
	Path      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssetResource is the API view of an asset. URL is absolute.
type AssetResource struct {
	UUID   string    `json:"uuid"`
	Name   string    `json:"name"`
	Type   AssetType `json:"type"`
	Path   string    `json:"path"`
	Active bool      `json:"active"`
}

// SongResource is the API view of a song with its assets.
type SongResource struct {
	UUID        string          `json:"uuid"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    *string         `json:"category"`
	Active      bool            `json:"active"`
	Assets      []AssetResource `json:"assets"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// Resource converts a to its API view. publicURL maps a storage path to the
// URL clients fetch it from.
func (a SongAsset) Resource(publicURL func(path string) string) AssetResource {
	return AssetResource{
		UUID:   a.UUID,
		Name:   a.Name,
		Type:   a.Type,
		Path:   publicURL(a.Path),
		Active: a.Active,
	}
}

// Resource converts s and its loaded assets to the API view.
func (s Song) Resource(publicURL func(path string) string) SongResource {
	assets := make([]AssetResource, 0, len(s.Assets))
	for _, a := range s.Assets {
		assets = append(assets, a.Resource(publicURL))
	}
	return SongResource{
		UUID:        s.UUID,
		Name:        s.Name,
		Description: s.Description,
		Category:    s.Category,
		Active:      s.Active,
		Assets:      assets,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

// AdminAssetResource is the admin view of an asset, which exposes the raw
// storage path and timestamps.
type AdminAssetResource struct {
	UUID      string    `json:"uuid"`
	SongUUID  string    `json:"song_uuid,omitempty"`
	Name      string    `json:"name"`
	Type      AssetType `json:"type"`
	Path      string    `json:"path"`
	Active    bool      `json:"active"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// AdminResource converts a to its admin view.
func (a SongAsset) AdminResource(songUUID string) AdminAssetResource {
	return AdminAssetResource{
		UUID:      a.UUID,
		SongUUID:  songUUID,
		Name:      a.Name,
		Type:      a.Type,
		Path:      a.Path,
		Active:    a.Active,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

// Stats is the dashboard summary.
type Stats struct {
	TotalChoirs int `json:"totalChoirs"`
	TotalSongs  int `json:"totalSongs"`
	TotalMp3s   int `json:"totalMp3s"`
	TotalAssets int `json:"totalAssets"`
}
