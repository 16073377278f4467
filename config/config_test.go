package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Niederb/hash-art/config"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/perturb"
	"github.com/Niederb/hash-art/search"
)

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		// Keep the working directory free of a stray hashart.toml.
		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)
	})

	Describe("InitViper", func() {
		It("falls back to defaults without a config file", func() {
			v, err := config.InitViper("")
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("fails on an explicit file that does not exist", func() {
			_, err := config.InitViper(filepath.Join(dir, "missing.toml"))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, errs.ErrInvalidConfig)).To(BeTrue())
		})

		It("reads an explicit TOML file", func() {
			path := filepath.Join(dir, "custom.toml")
			Expect(os.WriteFile(path, []byte(`
source = "in.png"
target = "goal.png"

[search]
block_size = "4x2"
hash = "md5"
max_iterations = 500
`), 0o644)).To(Succeed())

			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Source).To(Equal("in.png"))
			Expect(cfg.Target).To(Equal("goal.png"))
			Expect(cfg.Search.BlockSize).To(Equal("4x2"))
			Expect(cfg.Search.Hash).To(Equal("md5"))
			Expect(cfg.Search.MaxIterations).To(Equal(uint64(500)))
			Expect(cfg.Output).To(Equal(config.DefaultOutput))
		})

		It("picks up hashart.toml from the working directory", func() {
			Expect(os.WriteFile(filepath.Join(dir, "hashart.toml"), []byte("output = \"found.bmp\"\n"), 0o644)).To(Succeed())

			v, err := config.InitViper("")
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Output).To(Equal("found.bmp"))
		})

		It("lets environment variables override the file", func() {
			path := filepath.Join(dir, "env.toml")
			Expect(os.WriteFile(path, []byte("[search]\nseed = 3\n"), 0o644)).To(Succeed())
			setenv("HASHART_SEARCH_SEED", "42")
			setenv("HASHART_IMAGE_GRAYSCALE", "true")
			setenv("HASHART_IMAGE_INVERT_TARGET", "true")

			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Search.Seed).To(Equal(uint64(42)))
			Expect(cfg.Image.Grayscale).To(BeTrue())
			Expect(cfg.Image.InvertTarget).To(BeTrue())
		})
	})

	Describe("BindRegisteredFlags", func() {
		It("gives changed flags the highest precedence", func() {
			setenv("HASHART_SEARCH_SEED", "42")

			var (
				seed  uint64
				mode  string
				delta int
			)
			cmd := &cobra.Command{Use: "search"}
			config.AddUint64Flag(cmd, config.SearchFlags, config.FlagSeed, &seed)
			config.AddStringFlag(cmd, config.SearchFlags, config.FlagMode, &mode)
			config.AddIntFlag(cmd, config.SearchFlags, config.FlagMaxDelta, &delta)
			Expect(cmd.ParseFlags([]string{"--seed", "7", "-m", "pixel"})).To(Succeed())

			v, err := config.InitViper("")
			Expect(err).NotTo(HaveOccurred())
			config.BindRegisteredFlags(v, cmd, config.SearchFlags, config.SearchFlags.Keys())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Search.Seed).To(Equal(uint64(7)))
			Expect(cfg.Search.Mode).To(Equal("pixel"))
			Expect(cfg.Search.MaxDelta).To(Equal(2))
		})

		It("uses the defaults as flag defaults", func() {
			var size string
			cmd := &cobra.Command{Use: "search"}
			config.AddStringFlag(cmd, config.SearchFlags, config.FlagBlockSize, &size)

			f := cmd.Flags().Lookup("block-size")
			Expect(f).NotTo(BeNil())
			Expect(f.Shorthand).To(Equal("b"))
			Expect(f.DefValue).To(Equal("8x8"))
		})

		It("ignores unknown registry keys", func() {
			var s string
			cmd := &cobra.Command{Use: "search"}
			config.AddStringFlag(cmd, config.SearchFlags, "no-such-flag", &s)
			Expect(cmd.Flags().HasFlags()).To(BeFalse())
		})
	})

	Describe("SearchConfig", func() {
		It("maps the defaults onto search.DefaultConfig", func() {
			sc, err := config.NewDefaultConfig().SearchConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(sc).To(Equal(search.DefaultConfig()))
		})

		It("parses every field", func() {
			cfg := config.NewDefaultConfig()
			cfg.Search.BlockSize = "16x4"
			cfg.Search.Edge = "pad"
			cfg.Search.PadFill = 9
			cfg.Search.Hash = "blake2b-256"
			cfg.Search.Mode = "pixel"
			cfg.Search.Pixels = 3
			cfg.Search.Policy = "anneal"
			cfg.Search.Schedule = "linear"
			cfg.Search.Cooling = 0.5
			cfg.Search.TimeBudget = "90s"
			cfg.Search.Backend = "parallel"
			cfg.Search.Batch = 8

			sc, err := cfg.SearchConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(sc.Blocks.Size.W).To(Equal(16))
			Expect(sc.Blocks.Size.H).To(Equal(4))
			Expect(sc.Blocks.Fill).To(Equal(byte(9)))
			Expect(sc.Algorithm).To(Equal(hashing.BLAKE2b256))
			Expect(sc.Perturb.Mode).To(Equal(perturb.ModePixel))
			Expect(sc.Perturb.Pixels).To(Equal(3))
			Expect(sc.Policy).To(Equal(search.PolicyAnneal))
			Expect(sc.Schedule).To(Equal(search.ScheduleLinear))
			Expect(sc.TimeBudget).To(Equal(90 * time.Second))
			Expect(sc.Backend).To(Equal(search.BackendParallel))
			Expect(sc.BatchSize).To(Equal(8))
		})

		DescribeTable("rejects invalid values",
			func(mutate func(*config.Config), sentinel error) {
				cfg := config.NewDefaultConfig()
				mutate(cfg)
				_, err := cfg.SearchConfig()
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, sentinel)).To(BeTrue(), err.Error())
				Expect(errs.KindOf(err)).To(Equal(errs.KindSetup))
			},
			Entry("zero block size", func(c *config.Config) { c.Search.BlockSize = "0" }, errs.ErrInvalidBlockSize),
			Entry("garbled block size", func(c *config.Config) { c.Search.BlockSize = "big" }, errs.ErrInvalidBlockSize),
			Entry("unknown hash", func(c *config.Config) { c.Search.Hash = "crc32" }, errs.ErrInvalidConfig),
			Entry("unknown mode", func(c *config.Config) { c.Search.Mode = "swap" }, errs.ErrInvalidConfig),
			Entry("unknown backend", func(c *config.Config) { c.Search.Backend = "tpu" }, errs.ErrInvalidConfig),
			Entry("garbled time budget", func(c *config.Config) { c.Search.TimeBudget = "soon" }, errs.ErrInvalidConfig),
			Entry("negative time budget", func(c *config.Config) { c.Search.TimeBudget = "-1s" }, errs.ErrInvalidConfig),
			Entry("zero batch", func(c *config.Config) { c.Search.Batch = 0 }, errs.ErrInvalidConfig),
			Entry("max delta too small for blocks", func(c *config.Config) { c.Search.MaxDelta = 1 }, errs.ErrInvalidConfig),
		)
	})

	Describe("ReportInterval", func() {
		It("treats an empty interval as disabled", func() {
			d, err := config.NewDefaultConfig().ReportInterval()
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeZero())
		})

		It("parses a duration", func() {
			cfg := config.NewDefaultConfig()
			cfg.Profile.ReportInterval = "5s"
			d, err := cfg.ReportInterval()
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(5 * time.Second))
		})
	})

	Describe("LoggerOptions", func() {
		It("always sets the level and adds one format option", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.LoggerOptions()).To(HaveLen(2))

			cfg.Log.Format = config.FormatText
			Expect(cfg.LoggerOptions()).To(HaveLen(1))

			cfg.Log.Format = config.FormatJSON
			Expect(cfg.LoggerOptions()).To(HaveLen(2))
		})
	})

	Describe("Write", func() {
		It("writes a file that loads back to the same config", func() {
			path := filepath.Join(dir, "nested", "hashart.toml")
			cfg := config.NewDefaultConfig()
			cfg.Source = "a.png"
			cfg.Search.Policy = "anneal"

			Expect(config.Write(path, cfg, false)).To(Succeed())

			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())
			loaded, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("refuses to overwrite without force", func() {
			path := filepath.Join(dir, "hashart.toml")
			Expect(os.WriteFile(path, []byte("# mine\n"), 0o644)).To(Succeed())

			err := config.Write(path, config.NewDefaultConfig(), false)
			Expect(errors.Is(err, errs.ErrIO)).To(BeTrue())

			Expect(config.Write(path, config.NewDefaultConfig(), true)).To(Succeed())
			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("[search]"))
		})
	})
})
