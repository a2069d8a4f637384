package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: policyIteration
def:
  world:
    width: 5
    height: 4
  hyperparams:
    - key: gamma
      val: 0.8
  rewards:
    - x: 1
      y: 1
      val: -1
  run:
    interval: 50ms
    maxiterations: 10
    tolerance: 0.001
  trainingdeadline:
    duration: 2s
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("FromYaml", t, func() {
		Convey("When the config is complete", func() {
			cfg, err := FromYaml(writeConfig(t, testConfig))
			So(err, ShouldBeNil)
			So(cfg.World, ShouldResemble, WorldConfig{Width: 5, Height: 4})
			So(cfg.Gamma(), ShouldEqual, 0.8)
			So(cfg.Rewards, ShouldResemble, []RewardOverride{{X: 1, Y: 1, Val: -1}})
			So(cfg.Run.MaxIterations, ShouldEqual, 10)
			So(cfg.Run.Tolerance, ShouldEqual, 0.001)

			interval, err := cfg.Interval()
			So(err, ShouldBeNil)
			So(interval, ShouldEqual, 50*time.Millisecond)

			Convey("The world carries the configured rewards", func() {
				gw := cfg.NewWorld()
				So(gw.Width(), ShouldEqual, 5)
				So(gw.GetReward(gw.PosToState(1, 1)), ShouldEqual, -1)
				So(gw.GetReward(gw.GoalState()), ShouldEqual, 1)
			})

			Convey("The deadline bounds the context", func() {
				ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
				So(err, ShouldBeNil)
				defer cancel()
				deadline, ok := ctx.Deadline()
				So(ok, ShouldBeTrue)
				So(time.Until(deadline).Seconds(), ShouldBeLessThanOrEqualTo, 2.0)
			})
		})

		Convey("When fields are omitted, defaults apply", func() {
			cfg, err := FromYaml(writeConfig(t, "kind: policyIteration\ndef:\n  world:\n    width: 3\n    height: 1\n"))
			So(err, ShouldBeNil)
			So(cfg.Gamma(), ShouldEqual, DefaultGamma)
			interval, err := cfg.Interval()
			So(err, ShouldBeNil)
			So(interval, ShouldEqual, DefaultInterval)

			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, ok := ctx.Deadline()
			So(ok, ShouldBeFalse)
		})

		Convey("When the file does not exist", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("When the config is invalid", func() {
			_, err := FromYaml(writeConfig(t, "kind: policyIteration\ndef:\n  world:\n    width: 0\n    height: 1\n"))
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Validate", t, func() {
		cfg := DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("Gamma must lie in (0,1]", func() {
			cfg.HyperParams = []HyperParameter{{Key: "gamma", Val: 0}}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			cfg.HyperParams = []HyperParameter{{Key: "gamma", Val: 1.5}}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			cfg.HyperParams = []HyperParameter{{Key: "gamma", Val: 1}}
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Intervals must parse and be positive", func() {
			cfg.Run.Interval = "soon"
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			cfg.Run.Interval = "-1s"
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Deadlines must parse", func() {
			cfg.TrainingDeadline = map[string]string{"duration": "forever"}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Reward cells must be on the grid", func() {
			cfg.Rewards = []RewardOverride{{X: DefaultWidth, Y: 0, Val: 1}}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Run limits must be non-negative", func() {
			cfg.Run.MaxIterations = -1
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
