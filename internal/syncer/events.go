package syncer

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Stage names one step of a run.
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageLive        Stage = "live"
	StageMovies      Stage = "movies"
	StageSeries      Stage = "series"
	StageGuide       Stage = "guide"
)

// Event is one of Progress, Success or Error.
type Event interface {
	event()
}

// Progress is emitted before each stage starts. Current is 1-based.
type Progress struct {
	Stage   Stage
	Step    string
	Current int
	Total   int
}

// Success ends a run in which every stage committed.
type Success struct {
	RunID  string
	Report Report
}

// Error ends a run at the first failing stage. Stages after it were not
// attempted; the failing stage's writes were rolled back.
type Error struct {
	RunID   string
	Stage   Stage
	Message string
	Err     error
}

func (Progress) event() {}
func (Success) event()  {}
func (Error) event()    {}

func (e Error) Error() string { return e.Message }
func (e Error) Unwrap() error { return e.Err }

func (p Progress) String() string {
	return fmt.Sprintf("[%d/%d] %s", p.Current, p.Total, p.Step)
}

// DomainReport counts what a catalog stage wrote.
type DomainReport struct {
	Categories int // including the fallback category
	Items      int
	Rejected   int
}

// GuideReport counts what the guide stage wrote.
type GuideReport struct {
	Channels   int
	Programmes int
	// Dropped are programmes with unparseable times, channels without an id,
	// and programmes storage refused because start was not before end.
	Dropped int
}

// Report summarizes a successful run.
type Report struct {
	Live   DomainReport
	Movies DomainReport
	Series DomainReport
	Guide  GuideReport
}

func (d DomainReport) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("categories", d.Categories).Int("items", d.Items).Int("rejected", d.Rejected)
}
