// Package xmltv pulls channels and programmes out of an XMLTV document in
// one forward pass, handing them to a Sink in bounded batches.
package xmltv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/snapetech/iptvsync/internal/catalog"
	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/normalize"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 100

// ErrMalformed marks a document the XML tokenizer could not read to the end.
var ErrMalformed = errors.New("malformed xmltv stream")

// Sink receives batches in document order. Slices are not reused after the call.
type Sink interface {
	Channels(ctx context.Context, batch []catalog.GuideChannel) error
	Programmes(ctx context.Context, batch []catalog.GuideProgramme) error
}

// Options tunes Parse.
type Options struct {
	BatchSize int
	Logger    *zerolog.Logger
}

// Stats counts what a Parse call delivered.
type Stats struct {
	Channels   int
	Programmes int
	// Dropped counts programmes whose start or stop did not parse, and channels without an id.
	Dropped int
}

type channelAcc struct {
	id   string
	name *string
}

type programmeAcc struct {
	channel string
	start   string
	stop    string
	title   *string
	desc    *string
}

// Parse reads an XMLTV document from r. Channels and programmes are flushed to
// sink whenever BatchSize of either accumulates and once more at end of
// document. A tokenizer error (truncation, bad syntax) is returned wrapping
// ErrMalformed; sink errors and ctx cancellation are returned as-is.
func Parse(ctx context.Context, r io.Reader, opts Options, sink Sink) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		l := logging.Component("xmltv")
		log = &l
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	var (
		st        Stats
		channels  = make([]catalog.GuideChannel, 0, opts.BatchSize)
		progs     = make([]catalog.GuideProgramme, 0, opts.BatchSize)
		ch        *channelAcc
		prog      *programmeAcc
		capturing string
		text      strings.Builder
		sawRoot   bool
	)

	flushChannels := func() error {
		if len(channels) == 0 {
			return nil
		}
		if err := sink.Channels(ctx, channels); err != nil {
			return err
		}
		st.Channels += len(channels)
		channels = make([]catalog.GuideChannel, 0, opts.BatchSize)
		return nil
	}
	flushProgrammes := func() error {
		if len(progs) == 0 {
			return nil
		}
		if err := sink.Programmes(ctx, progs); err != nil {
			return err
		}
		st.Programmes += len(progs)
		progs = make([]catalog.GuideProgramme, 0, opts.BatchSize)
		return nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := ctx.Err(); err != nil {
				return st, err
			}
			sawRoot = true
			switch t.Name.Local {
			case "channel":
				ch = &channelAcc{id: strings.TrimSpace(xmlAttr(t.Attr, "id"))}
			case "programme":
				prog = &programmeAcc{
					channel: strings.TrimSpace(xmlAttr(t.Attr, "channel")),
					start:   xmlAttr(t.Attr, "start"),
					stop:    xmlAttr(t.Attr, "stop"),
				}
			case "display-name":
				if ch != nil && ch.name == nil {
					capturing = "display-name"
					text.Reset()
				}
			case "title":
				if prog != nil && prog.title == nil {
					capturing = "title"
					text.Reset()
				}
			case "desc":
				if prog != nil && prog.desc == nil {
					capturing = "desc"
					text.Reset()
				}
			}

		case xml.CharData:
			if capturing != "" {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case capturing:
				v := normalize.NonBlank(text.String())
				switch capturing {
				case "display-name":
					if ch != nil {
						ch.name = v
					}
				case "title":
					if prog != nil {
						prog.title = v
					}
				case "desc":
					if prog != nil {
						prog.desc = v
					}
				}
				capturing = ""
			case "channel":
				if ch == nil {
					continue
				}
				if ch.id == "" {
					st.Dropped++
				} else {
					channels = append(channels, catalog.GuideChannel{ID: ch.id, DisplayName: ch.name})
				}
				ch = nil
				if len(channels) >= opts.BatchSize {
					if err := flushChannels(); err != nil {
						return st, err
					}
				}
			case "programme":
				if prog == nil {
					continue
				}
				p, ok := prog.build()
				prog = nil
				if !ok {
					st.Dropped++
					continue
				}
				progs = append(progs, p)
				if len(progs) >= opts.BatchSize {
					if err := flushProgrammes(); err != nil {
						return st, err
					}
				}
			}
		}
	}

	if !sawRoot {
		return st, fmt.Errorf("%w: no elements", ErrMalformed)
	}
	if err := flushChannels(); err != nil {
		return st, err
	}
	if err := flushProgrammes(); err != nil {
		return st, err
	}
	log.Debug().Int("channels", st.Channels).Int("programmes", st.Programmes).Int("dropped", st.Dropped).Msg("guide parsed")
	return st, nil
}

func (p *programmeAcc) build() (catalog.GuideProgramme, bool) {
	start, ok := normalize.ParseXMLTVTime(p.start)
	if !ok {
		return catalog.GuideProgramme{}, false
	}
	end, ok := normalize.ParseXMLTVTime(p.stop)
	if !ok {
		return catalog.GuideProgramme{}, false
	}
	return catalog.GuideProgramme{
		ChannelID:   p.channel,
		Start:       start,
		End:         end,
		Title:       p.title,
		Description: p.desc,
	}, true
}

func xmlAttr(attrs []xml.Attr, key string) string {
	for _, a := range attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}
