package reconcile_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/reconcile"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)

func payloadAt(at time.Time, notes string) draft.Payload {
	p := draft.New("football", "film-9")
	p.FreeNotesText = notes
	p.UpdatedAt = at
	return p
}

func recordOf(p draft.Payload) *draft.Record {
	return &draft.Record{OwnerID: "ev-1", Key: "auto_x", Sport: p.Sport, Payload: p, UpdatedAt: p.UpdatedAt}
}

func TestResolve(t *testing.T) {
	Convey("Given the replicas of a draft", t, func() {
		empty := draft.New("football", "film-9")

		Convey("With neither replica present the empty draft wins", func() {
			d := reconcile.Resolve(nil, nil, empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerEmpty)
			So(d.WriteLocal, ShouldBeFalse)
			So(d.PushRemote, ShouldBeFalse)
			So(cmp.Diff(empty, d.Payload), ShouldBeEmpty)
		})

		Convey("With the remote absent the local copy wins and nothing is written", func() {
			l := payloadAt(base, "local")
			d := reconcile.Resolve(&l, nil, empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerLocal)
			So(d.WriteLocal, ShouldBeFalse)
			So(d.PushRemote, ShouldBeFalse)
			So(d.Payload.FreeNotesText, ShouldEqual, "local")
		})

		Convey("With the local copy absent the remote wins and is cached", func() {
			r := payloadAt(base, "remote")
			d := reconcile.Resolve(nil, recordOf(r), empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerRemote)
			So(d.WriteLocal, ShouldBeTrue)
			So(cmp.Diff(r, d.Payload), ShouldBeEmpty)
		})

		Convey("A strictly newer remote replaces the whole local payload", func() {
			l := payloadAt(base, "local")
			l.StrengthsText = "only local"
			r := payloadAt(base.Add(time.Second), "remote")
			d := reconcile.Resolve(&l, recordOf(r), empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerRemote)
			So(d.WriteLocal, ShouldBeTrue)
			So(d.Payload.StrengthsText, ShouldEqual, "")
		})

		Convey("A strictly newer local copy wins and asks for a push", func() {
			l := payloadAt(base.Add(time.Second), "local")
			r := payloadAt(base, "remote")
			d := reconcile.Resolve(&l, recordOf(r), empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerLocal)
			So(d.PushRemote, ShouldBeTrue)
			So(d.WriteLocal, ShouldBeFalse)
		})

		Convey("Ties favour the local copy without a remote write", func() {
			l := payloadAt(base, "local")
			r := payloadAt(base, "remote")
			d := reconcile.Resolve(&l, recordOf(r), empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerLocal)
			So(d.PushRemote, ShouldBeFalse)
			So(d.Payload.FreeNotesText, ShouldEqual, "local")
		})

		Convey("A malformed remote payload counts as absent", func() {
			l := payloadAt(base, "local")
			r := payloadAt(base.Add(time.Hour), "remote")
			r.SchemaVersion = 7
			d := reconcile.Resolve(&l, recordOf(r), empty)
			So(d.Winner, ShouldEqual, reconcile.WinnerLocal)
		})

		Convey("The decision does not alias its inputs", func() {
			l := payloadAt(base, "local")
			l.SetValue("speed", draft.Numeric(4))
			d := reconcile.Resolve(&l, nil, empty)
			d.Payload.SetValue("speed", draft.Numeric(9))
			So(l.Value("speed").Number, ShouldEqual, 4)
		})
	})
}

func TestPick(t *testing.T) {
	Convey("LWW returns the remote only when it is strictly later", t, func() {
		for _, offset := range []time.Duration{-time.Minute, 0, time.Minute} {
			l := payloadAt(base, "L")
			r := payloadAt(base.Add(offset), "R")
			want := "L"
			if offset > 0 {
				want = "R"
			}
			So(reconcile.Pick(l, r).FreeNotesText, ShouldEqual, want)
		}
	})
}
