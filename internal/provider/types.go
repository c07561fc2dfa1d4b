package provider

import "github.com/snapetech/iptvsync/internal/normalize"

// Raw Xtream list records. Only the id is contractually present; every other
// field may be missing, blank, or typed differently from panel to panel.

// LiveStream is one element of get_live_streams.
type LiveStream struct {
	StreamID          normalize.FlexString `json:"stream_id"`
	Num               normalize.FlexString `json:"num"`
	Name              normalize.FlexString `json:"name"`
	StreamType        normalize.FlexString `json:"stream_type"`
	StreamIcon        normalize.FlexString `json:"stream_icon"`
	EPGChannelID      normalize.FlexString `json:"epg_channel_id"`
	Added             normalize.FlexString `json:"added"`
	CustomSID         normalize.FlexString `json:"custom_sid"`
	TVArchive         normalize.FlexString `json:"tv_archive"`
	DirectSource      normalize.FlexString `json:"direct_source"`
	TVArchiveDuration normalize.FlexString `json:"tv_archive_duration"`
	CategoryID        normalize.FlexString `json:"category_id"`
	CategoryIDs       normalize.IntList    `json:"category_ids"`
	Thumbnail         normalize.FlexString `json:"thumbnail"`
}

// VODStream is one element of get_vod_streams.
type VODStream struct {
	StreamID           normalize.FlexString `json:"stream_id"`
	Num                normalize.FlexString `json:"num"`
	Name               normalize.FlexString `json:"name"`
	Title              normalize.FlexString `json:"title"`
	Year               normalize.FlexString `json:"year"`
	StreamType         normalize.FlexString `json:"stream_type"`
	StreamIcon         normalize.FlexString `json:"stream_icon"`
	Rating             normalize.FlexString `json:"rating"`
	Rating5Based       normalize.FlexString `json:"rating_5based"`
	Added              normalize.FlexString `json:"added"`
	CategoryID         normalize.FlexString `json:"category_id"`
	CategoryIDs        normalize.IntList    `json:"category_ids"`
	ContainerExtension normalize.FlexString `json:"container_extension"`
	CustomSID          normalize.FlexString `json:"custom_sid"`
	DirectSource       normalize.FlexString `json:"direct_source"`
}

// SeriesInfo is one element of get_series.
type SeriesInfo struct {
	SeriesID       normalize.FlexString `json:"series_id"`
	Num            normalize.FlexString `json:"num"`
	Name           normalize.FlexString `json:"name"`
	Title          normalize.FlexString `json:"title"`
	Year           normalize.FlexString `json:"year"`
	StreamType     normalize.FlexString `json:"stream_type"`
	Cover          normalize.FlexString `json:"cover"`
	Plot           normalize.FlexString `json:"plot"`
	Cast           normalize.FlexString `json:"cast"`
	Director       normalize.FlexString `json:"director"`
	Genre          normalize.FlexString `json:"genre"`
	ReleaseDate    normalize.FlexString `json:"release_date"`
	ReleaseDateAlt normalize.FlexString `json:"releaseDate"`
	LastModified   normalize.FlexString `json:"last_modified"`
	Rating         normalize.FlexString `json:"rating"`
	Rating5Based   normalize.FlexString `json:"rating_5based"`
	BackdropPath   normalize.StringList `json:"backdrop_path"`
	YoutubeTrailer normalize.FlexString `json:"youtube_trailer"`
	EpisodeRunTime normalize.FlexString `json:"episode_run_time"`
	CategoryID     normalize.FlexString `json:"category_id"`
	CategoryIDs    normalize.IntList    `json:"category_ids"`
}

// UserInfo is the user_info object returned by player_api.php with no action.
type UserInfo struct {
	Username       normalize.FlexString `json:"username"`
	Auth           normalize.FlexString `json:"auth"`
	Status         normalize.FlexString `json:"status"`
	ExpDate        normalize.FlexString `json:"exp_date"`
	MaxConnections normalize.FlexString `json:"max_connections"`
	ActiveCons     normalize.FlexString `json:"active_cons"`
}

// Authenticated reports auth == 1.
func (u UserInfo) Authenticated() bool {
	n, ok := normalize.ToInt(u.Auth.String())
	return ok && n == 1
}
