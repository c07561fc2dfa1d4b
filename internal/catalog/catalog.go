// Package catalog holds the normalized catalog model shared by the mappers,
// the guide parser and the store, plus the category reconciler.
package catalog

import (
	"fmt"
	"time"

	"github.com/snapetech/iptvsync/internal/normalize"
)

// DomainType is one of the category-bearing content domains.
type DomainType string

const (
	DomainLive   DomainType = "live"
	DomainMovie  DomainType = "movie"
	DomainSeries DomainType = "series"
)

// Domains lists the category-bearing domains in sync order.
var Domains = []DomainType{DomainLive, DomainMovie, DomainSeries}

// Valid reports whether d is a known domain.
func (d DomainType) Valid() bool {
	switch d {
	case DomainLive, DomainMovie, DomainSeries:
		return true
	}
	return false
}

// ParseDomain accepts the domain names plus the "vod" alias used by Xtream actions.
func ParseDomain(s string) (DomainType, error) {
	switch s {
	case "live", "live_tv":
		return DomainLive, nil
	case "movie", "movies", "vod":
		return DomainMovie, nil
	case "series":
		return DomainSeries, nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// RawCategory is one entry of a get_*_categories response.
type RawCategory struct {
	CategoryID   normalize.FlexString `json:"category_id"`
	CategoryName normalize.FlexString `json:"category_name"`
	ParentID     normalize.FlexString `json:"parent_id"`
}

// Category is a reconciled provider category. Identity is (Domain, ID).
type Category struct {
	Domain   DomainType `json:"domain"`
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	ParentID int        `json:"parent_id"`
}

// Membership links an item to one of its domain's categories.
type Membership struct {
	ItemID     int        `json:"item_id"`
	Domain     DomainType `json:"domain"`
	CategoryID int        `json:"category_id"`
}

// LiveChannel is a live stream from get_live_streams.
type LiveChannel struct {
	ID                int     `json:"id"`
	Num               *int    `json:"num,omitempty"`
	Name              string  `json:"name"`
	StreamType        *string `json:"stream_type,omitempty"`
	StreamIcon        *string `json:"stream_icon,omitempty"`
	EPGChannelID      *string `json:"epg_channel_id,omitempty"`
	Added             *int64  `json:"added,omitempty"`
	CustomSID         *string `json:"custom_sid,omitempty"`
	TVArchive         *int    `json:"tv_archive,omitempty"`
	DirectSource      *string `json:"direct_source,omitempty"`
	TVArchiveDuration *int    `json:"tv_archive_duration,omitempty"`
	Thumbnail         *string `json:"thumbnail,omitempty"`
}

// Movie is a VOD entry from get_vod_streams.
type Movie struct {
	ID                 int      `json:"id"`
	Num                *int     `json:"num,omitempty"`
	Name               string   `json:"name"`
	Title              *string  `json:"title,omitempty"`
	Year               *int     `json:"year,omitempty"`
	StreamType         *string  `json:"stream_type,omitempty"`
	StreamIcon         *string  `json:"stream_icon,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	Rating5Based       *float64 `json:"rating_5based,omitempty"`
	Added              *int64   `json:"added,omitempty"`
	ContainerExtension *string  `json:"container_extension,omitempty"`
	CustomSID          *string  `json:"custom_sid,omitempty"`
	DirectSource       *string  `json:"direct_source,omitempty"`
}

// Series is a show from get_series. Episodes are not part of the list endpoint.
type Series struct {
	ID             int      `json:"id"`
	Num            *int     `json:"num,omitempty"`
	Name           string   `json:"name"`
	Title          *string  `json:"title,omitempty"`
	Year           *string  `json:"year,omitempty"`
	StreamType     *string  `json:"stream_type,omitempty"`
	Cover          *string  `json:"cover,omitempty"`
	Plot           *string  `json:"plot,omitempty"`
	Cast           *string  `json:"cast,omitempty"`
	Director       *string  `json:"director,omitempty"`
	Genre          *string  `json:"genre,omitempty"`
	ReleaseDate    *string  `json:"release_date,omitempty"`
	LastModified   *int64   `json:"last_modified,omitempty"`
	Rating         *string  `json:"rating,omitempty"`
	Rating5Based   *float64 `json:"rating_5based,omitempty"`
	BackdropPath   *string  `json:"backdrop_path,omitempty"` // JSON array text
	YoutubeTrailer *string  `json:"youtube_trailer,omitempty"`
	EpisodeRunTime *string  `json:"episode_run_time,omitempty"`
}

// GuideChannel is an XMLTV <channel>.
type GuideChannel struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name,omitempty"`
}

// GuideProgramme is an XMLTV <programme> whose start and stop both parsed.
type GuideProgramme struct {
	ChannelID   string    `json:"channel_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
}
