package mapper

import (
	"github.com/goccy/go-json"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/normalize"
	"github.com/snapetech/iptvsync/internal/provider"
)

func positiveID(s normalize.FlexString) (int, error) {
	id, ok := normalize.ToInt(s.String())
	if !ok || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// Live maps a get_live_streams batch.
func (m *Mapper) Live(batch []provider.LiveStream) Result[catalog.LiveChannel] {
	ident := func(r provider.LiveStream) (string, string) { return r.StreamID.String(), r.Name.String() }
	return mapBatch(m, catalog.DomainLive, batch, ident, func(r provider.LiveStream) (mapped[catalog.LiveChannel], error) {
		id, err := positiveID(r.StreamID)
		if err != nil {
			return mapped[catalog.LiveChannel]{}, err
		}
		ch := catalog.LiveChannel{
			ID:                id,
			Num:               normalize.IntPtr(r.Num.String()),
			Name:              normalize.OrDefault(r.Name.String(), UnknownChannel),
			StreamType:        normalize.NonBlank(r.StreamType.String()),
			StreamIcon:        normalize.NormalizeURL(r.StreamIcon.String()),
			EPGChannelID:      normalize.NonBlank(r.EPGChannelID.String()),
			Added:             normalize.ParseProviderTimestamp(r.Added.String()),
			CustomSID:         normalize.NonBlank(r.CustomSID.String()),
			TVArchive:         normalize.IntPtr(r.TVArchive.String()),
			DirectSource:      normalize.NonBlank(r.DirectSource.String()),
			TVArchiveDuration: normalize.IntPtr(r.TVArchiveDuration.String()),
			Thumbnail:         normalize.NormalizeURL(r.Thumbnail.String()),
		}
		cats := catalog.AssignCategories(r.CategoryID.String(), r.CategoryIDs, m.Known, m.UncategorizedID)
		return mapped[catalog.LiveChannel]{item: ch, itemID: id, categories: cats}, nil
	})
}

// Movies maps a get_vod_streams batch.
func (m *Mapper) Movies(batch []provider.VODStream) Result[catalog.Movie] {
	ident := func(r provider.VODStream) (string, string) { return r.StreamID.String(), r.Name.String() }
	return mapBatch(m, catalog.DomainMovie, batch, ident, func(r provider.VODStream) (mapped[catalog.Movie], error) {
		id, err := positiveID(r.StreamID)
		if err != nil {
			return mapped[catalog.Movie]{}, err
		}
		mv := catalog.Movie{
			ID:                 id,
			Num:                normalize.IntPtr(r.Num.String()),
			Name:               normalize.OrDefault(r.Name.String(), UnknownMovie),
			Title:              normalize.NonBlank(r.Title.String()),
			Year:               normalize.IntPtr(r.Year.String()),
			StreamType:         normalize.NonBlank(r.StreamType.String()),
			StreamIcon:         normalize.NormalizeURL(r.StreamIcon.String()),
			Rating:             normalize.FloatPtr(r.Rating.String()),
			Rating5Based:       normalize.FloatPtr(r.Rating5Based.String()),
			Added:              normalize.ParseProviderTimestamp(r.Added.String()),
			ContainerExtension: normalize.NonBlank(r.ContainerExtension.String()),
			CustomSID:          normalize.NonBlank(r.CustomSID.String()),
			DirectSource:       normalize.NonBlank(r.DirectSource.String()),
		}
		cats := catalog.AssignCategories(r.CategoryID.String(), r.CategoryIDs, m.Known, m.UncategorizedID)
		return mapped[catalog.Movie]{item: mv, itemID: id, categories: cats}, nil
	})
}

// Series maps a get_series batch.
func (m *Mapper) Series(batch []provider.SeriesInfo) Result[catalog.Series] {
	ident := func(r provider.SeriesInfo) (string, string) { return r.SeriesID.String(), r.Name.String() }
	return mapBatch(m, catalog.DomainSeries, batch, ident, func(r provider.SeriesInfo) (mapped[catalog.Series], error) {
		id, err := positiveID(r.SeriesID)
		if err != nil {
			return mapped[catalog.Series]{}, err
		}
		release := normalize.NonBlank(r.ReleaseDate.String())
		if release == nil {
			release = normalize.NonBlank(r.ReleaseDateAlt.String())
		}
		s := catalog.Series{
			ID:             id,
			Num:            normalize.IntPtr(r.Num.String()),
			Name:           normalize.OrDefault(r.Name.String(), UnknownSeries),
			Title:          normalize.NonBlank(r.Title.String()),
			Year:           normalize.NonBlank(r.Year.String()),
			StreamType:     normalize.NonBlank(r.StreamType.String()),
			Cover:          normalize.NormalizeURL(r.Cover.String()),
			Plot:           normalize.NonBlank(r.Plot.String()),
			Cast:           normalize.NonBlank(r.Cast.String()),
			Director:       normalize.NonBlank(r.Director.String()),
			Genre:          normalize.NonBlank(r.Genre.String()),
			ReleaseDate:    release,
			LastModified:   normalize.ParseProviderTimestamp(r.LastModified.String()),
			Rating:         normalize.NonBlank(r.Rating.String()),
			Rating5Based:   normalize.FloatPtr(r.Rating5Based.String()),
			BackdropPath:   encodeBackdrops(r.BackdropPath),
			YoutubeTrailer: normalize.NonBlank(r.YoutubeTrailer.String()),
			EpisodeRunTime: normalize.NonBlank(r.EpisodeRunTime.String()),
		}
		cats := catalog.AssignCategories(r.CategoryID.String(), r.CategoryIDs, m.Known, m.UncategorizedID)
		return mapped[catalog.Series]{item: s, itemID: id, categories: cats}, nil
	})
}

// encodeBackdrops stores the backdrop list as JSON text. An empty list or an
// encoding failure leaves the field absent.
func encodeBackdrops(paths []string) *string {
	if len(paths) == 0 {
		return nil
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
