package export_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/export"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr[T any](v T) *T { return &v }

func form() rubric.Form {
	return rubric.Form{
		FormID: "football-v1",
		Sport:  "football",
		Title:  "Football Evaluation",
		Categories: []rubric.Category{
			{
				Key: "athletic", Label: "Athleticism", Weight: 40,
				Traits: []rubric.Trait{
					{Key: "speed", Label: "Speed", Type: rubric.TraitSlider, Min: 1, Max: 10, Step: 1},
				},
			},
			{
				Key: "mental", Label: "Mental", Weight: 60,
				Traits: []rubric.Trait{
					{Key: "iq", Label: "Football IQ", Type: rubric.TraitSelect, Options: []rubric.Option{
						{Value: "low", Label: "Developing", Score: ptr(1.0)},
						{Value: "high", Label: "Advanced", Score: ptr(3.0)},
					}},
					{Key: "motor", Label: "Motor", Type: rubric.TraitSelect, Required: ptr(false), Options: []rubric.Option{
						{Value: "steady", Label: "Steady"},
					}},
				},
			},
		},
	}
}

func TestToScoringPayload(t *testing.T) {
	Convey("Given a partially filled rubric", t, func() {
		f := form()
		state := draft.RubricState{
			"speed":  draft.Numeric(7),
			"iq":     draft.Choice("high"),
			"legacy": draft.Numeric(2),
		}

		got := export.ToScoringPayload(f, state)

		Convey("The shape follows the form ordering", func() {
			want := export.ScoringPayload{
				FormID: "football-v1",
				Categories: []export.CategoryScore{
					{Key: "athletic", Traits: []export.TraitScore{{Key: "speed", ValueNumber: ptr(7.0)}}},
					{Key: "mental", Traits: []export.TraitScore{
						{Key: "iq", ValueOption: ptr("high"), Score: ptr(3.0)},
						{Key: "motor"},
					}},
				},
			}
			So(cmp.Diff(want, got), ShouldBeEmpty)
		})

		Convey("Repeated calls are structurally identical", func() {
			again := export.ToScoringPayload(f, state)
			So(cmp.Diff(got, again), ShouldBeEmpty)

			a, err := got.Encode()
			So(err, ShouldBeNil)
			b, err := again.Encode()
			So(err, ShouldBeNil)
			So(string(a), ShouldEqual, string(b))
		})

		Convey("Out of range sliders are exported without a value", func() {
			p := export.ToScoringPayload(f, draft.RubricState{"speed": draft.Numeric(42)})
			So(p.Categories[0].Traits[0].ValueNumber, ShouldBeNil)
		})
	})
}

func TestToReport(t *testing.T) {
	Convey("Given a draft", t, func() {
		f := form()
		d := draft.New("football", "")
		d.SetValue("speed", draft.Numeric(7).WithNote("quick first step"))
		d.SetValue("iq", draft.Choice("high"))
		d.StrengthsText = "Reads the field early"

		report := export.ToReport(f, d)

		Convey("Traits are grouped by category with values and evidence", func() {
			So(report, ShouldContainSubstring, "== Athleticism (weight 40) ==\n- Speed: 7 / 10\n  Evidence: quick first step\n")
			So(report, ShouldContainSubstring, "- Football IQ: Advanced\n")
			So(report, ShouldContainSubstring, "- Motor: (none)\n")
		})

		Convey("Empty text sections show the placeholder", func() {
			So(report, ShouldContainSubstring, "== Strengths ==\nReads the field early\n")
			So(report, ShouldContainSubstring, "== Areas for improvement ==\n(none)\n")
			So(report, ShouldContainSubstring, "== Notes ==\n(none)\n")
			So(report, ShouldContainSubstring, "Film submission: (none)\n")
		})

		Convey("Sections appear in a fixed order", func() {
			s := strings.Index(report, "== Strengths ==")
			i := strings.Index(report, "== Areas for improvement ==")
			n := strings.Index(report, "== Notes ==")
			So(s, ShouldBeLessThan, i)
			So(i, ShouldBeLessThan, n)
		})

		Convey("Rendering is byte identical across calls", func() {
			So(export.ToReport(f, d), ShouldEqual, report)
		})

		Convey("The timestamp does not leak into the report", func() {
			touched := d.Clone()
			touched.Touch(touched.UpdatedAt.Add(48 * time.Hour))
			So(export.ToReport(f, touched), ShouldEqual, report)
		})
	})
}
