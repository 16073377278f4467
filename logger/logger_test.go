package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Niederb/hash-art/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("search started", "blocks", 64)

			output := buf.String()
			Expect(output).To(ContainSubstring("search started"))
			Expect(output).To(ContainSubstring("blocks=64"))
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("iteration skipped")

			Expect(buf.String()).To(ContainSubstring("iteration skipped"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(false))
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("parses level names", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithLevel("warn"))
			l.Info("hidden")
			l.Warn("shown")

			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
			Expect(buf.String()).To(ContainSubstring("shown"))
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("improved", "distance", 42)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("improved"))
			Expect(parsed["distance"]).To(BeNumerically("==", 42))
		})

		It("creates a pretty logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Info("pretty output", "seed", 7)

			Expect(buf.String()).To(ContainSubstring("pretty output"))
			Expect(buf.String()).To(ContainSubstring("seed"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.New(logger.WithWriters(&buf1, &buf2))
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("Nop", func() {
		It("discards all output", func() {
			l := logger.Nop()
			Expect(func() {
				l.Info("msg")
				l.With("key", "value").WithGroup("g").Error("msg")
			}).NotTo(Panic())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})

		It("replaces nil loggers", func() {
			Expect(logger.OrNop(nil)).NotTo(BeNil())

			l := logger.New()
			Expect(logger.OrNop(l)).To(BeIdenticalTo(l))
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var buf1, buf2 bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&buf1)),
				logger.New(logger.WithWriter(&buf2), logger.WithJSON(true)),
			)

			multi.Info("broadcast", "key", "val")

			Expect(buf1.String()).To(ContainSubstring("broadcast"))
			Expect(buf2.String()).To(ContainSubstring(`"key":"val"`))
		})

		It("only sends records to enabled handlers", func() {
			var quiet, loud bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&quiet)),
				logger.New(logger.WithWriter(&loud), logger.WithDebug(true)),
			)

			multi.Debug("detail")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("detail"))
		})

		It("supports WithGroup on multi logger", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))

			multi.WithGroup("result").Info("done", "distance", 0)

			var parsed map[string]any
			Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
			group, ok := parsed["result"].(map[string]any)
			Expect(ok).To(BeTrue(), "expected 'result' group in JSON output")
			Expect(group["distance"]).To(BeNumerically("==", 0))
		})
	})
})
