package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When it is initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When it is initialized with a JSON writer", func() {
			var buf bytes.Buffer
			So(Init(WithFormat("json"), WithWriter(&buf)), ShouldBeNil)

			Get().Info(context.Background(), "run accepted", String("run_id", "r-1"), Int("records", 3))

			Convey("Then entries are JSON with fields and source", func() {
				var entry map[string]any
				So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
				So(entry["msg"], ShouldEqual, "run accepted")
				So(entry["run_id"], ShouldEqual, "r-1")
				So(entry["records"], ShouldEqual, float64(3))
				So(entry["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When a named logger writes an error", func() {
			var buf bytes.Buffer
			So(Init(WithWriter(&buf)), ShouldBeNil)

			Named("worker").Error(context.Background(), "store failed", Error(errors.New("disk full")))

			Convey("Then the group prefixes the fields", func() {
				So(buf.String(), ShouldContainSubstring, "store failed")
				So(buf.String(), ShouldContainSubstring, "worker.error=")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("WARN"), ShouldBeNil)
			Get().Info(context.Background(), "hidden")
			Get().Warn(context.Background(), "shown")

			Convey("Then info entries are dropped", func() {
				So(strings.Contains(buf.String(), "hidden"), ShouldBeFalse)
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})

		Convey("When the level is unknown", func() {
			err := SetLevelString("verbose")

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "verbose")
			})
		})

		Convey("When the level is empty", func() {
			So(SetLevelString(""), ShouldBeNil)
			Get().Debug(context.Background(), "debug-line")
			Get().Info(context.Background(), "info-line")

			Convey("Then info is the effective level", func() {
				So(buf.String(), ShouldNotContainSubstring, "debug-line")
				So(buf.String(), ShouldContainSubstring, "info-line")
			})
		})
	})
}
