package hashartcmder_test

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	hashartcmder "github.com/Niederb/hash-art/cmd/hashart"
	"github.com/Niederb/hash-art/images"
)

func writePNG(path string, w, h, c int, fill func(i int) byte) {
	img, err := images.New(w, h, c)
	Expect(err).NotTo(HaveOccurred())
	for i := range img.Pix {
		img.Pix[i] = fill(i)
	}
	Expect(images.Save(path, img)).To(Succeed())
}

func hashQuiet(path string) string {
	stdout, err := execute("hash", path, "-q")
	Expect(err).NotTo(HaveOccurred())
	return stdout
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := hashartcmder.NewHashartCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("NewHashartCmd", func() {
	It("registers the subcommands", func() {
		cmd := hashartcmder.NewHashartCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("search", "hash", "config", "bench"))
	})

	It("has the global flags", func() {
		cmd := hashartcmder.NewHashartCmd()
		for _, name := range []string{"debug", "config", "log-level", "log-format"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("Command execution", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)
	})

	Describe("search", func() {
		It("writes the source unchanged when it already matches", func() {
			src := filepath.Join(dir, "src.png")
			out := filepath.Join(dir, "out.png")
			writePNG(src, 8, 8, images.ChannelsRGB, func(i int) byte { return byte(i) })

			stdout, err := execute("search", "-s", src, "-t", src, "-o", out, "--log-format", "text")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("all 1 blocks match"))
			Expect(stdout).To(ContainSubstring("exact match"))
			Expect(out).To(BeAnExistingFile())
		})

		It("finds a nearby target and prints only the path with --quiet", func() {
			src := filepath.Join(dir, "src.png")
			dst := filepath.Join(dir, "dst.png")
			out := filepath.Join(dir, "found.png")
			writePNG(src, 4, 4, images.ChannelsGray, func(i int) byte { return byte(100 + i) })
			writePNG(dst, 4, 4, images.ChannelsGray, func(i int) byte {
				if i == 5 {
					return byte(101 + i)
				}
				return byte(100 + i)
			})

			stdout, err := execute("search", "-s", src, "-t", dst, "-o", out,
				"-b", "1", "-m", "pixel", "-n", "5000", "--log-every", "0", "--quiet")
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.TrimSpace(stdout)).To(Equal(out))

			found, _, err := images.Load(out, "", images.ChannelsGray)
			Expect(err).NotTo(HaveOccurred())
			target, _, err := images.Load(dst, "", images.ChannelsGray)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Equal(target)).To(BeTrue())
		})

		It("fails without a target", func() {
			src := filepath.Join(dir, "src.png")
			writePNG(src, 8, 8, images.ChannelsGray, func(i int) byte { return byte(i) })

			_, err := execute("search", "-s", src)
			Expect(err).To(HaveOccurred())
		})

		It("searches for the inverted source with --invert-target", func() {
			src := filepath.Join(dir, "src.png")
			writePNG(src, 8, 8, images.ChannelsGray, func(i int) byte { return byte(i) })

			stdout, err := execute("search", "-s", src, "--invert-target", "-n", "0", "--log-format", "text")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("1 of 1 blocks still differ"))
			Expect(filepath.Join(dir, "result.png")).To(BeAnExistingFile())
		})

		It("rejects an unknown hash", func() {
			src := filepath.Join(dir, "src.png")
			writePNG(src, 8, 8, images.ChannelsGray, func(i int) byte { return byte(i) })

			_, err := execute("search", "-s", src, "-t", src, "--hash", "crc32")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("crc32"))
		})
	})

	Describe("hash", func() {
		It("prints one digest per block", func() {
			img := filepath.Join(dir, "img.png")
			writePNG(img, 8, 8, images.ChannelsGray, func(i int) byte { return byte(i) })

			stdout, err := execute("hash", img, "-b", "4", "--hash", "md5", "-q")
			Expect(err).NotTo(HaveOccurred())

			lines := strings.Fields(stdout)
			Expect(lines).To(HaveLen(4))
			for _, l := range lines {
				Expect(l).To(HaveLen(32))
			}
		})

		It("renders the digests into their blocks", func() {
			img := filepath.Join(dir, "img.png")
			art := filepath.Join(dir, "art.png")
			writePNG(img, 16, 8, images.ChannelsGray, func(i int) byte { return byte(i * 3) })

			stdout, err := execute("hash", img, "--render", art)
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("wrote " + art))

			rendered, _, err := images.Load(art, "", images.ChannelsGray)
			Expect(err).NotTo(HaveOccurred())
			Expect(rendered.Width).To(Equal(16))
			Expect(rendered.Height).To(Equal(8))

			digests := strings.Fields(strings.TrimSpace(hashQuiet(img)))
			Expect(digests).To(HaveLen(2))
			// Row 0 of block 0 holds the first 8 digest bytes.
			Expect(hex.EncodeToString(rendered.Pix[:8])).To(Equal(digests[0][:16]))
			// Row 0 of block 1 follows at x = 8.
			Expect(hex.EncodeToString(rendered.Pix[8:16])).To(Equal(digests[1][:16]))
		})

		It("rejects a lossy render path", func() {
			img := filepath.Join(dir, "img.png")
			writePNG(img, 8, 8, images.ChannelsGray, func(i int) byte { return byte(i) })

			_, err := execute("hash", img, "--render", filepath.Join(dir, "art.jpg"))
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one image", func() {
			_, err := execute("hash")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("config", func() {
		It("writes defaults and shows them back", func() {
			stdout, err := execute("config", "init")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("wrote hashart.toml"))
			Expect(filepath.Join(dir, "hashart.toml")).To(BeAnExistingFile())

			_, err = execute("config", "init")
			Expect(err).To(HaveOccurred())

			_, err = execute("config", "init", "--force")
			Expect(err).NotTo(HaveOccurred())

			stdout, err = execute("config", "show")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring(`block_size = "8x8"`))
			Expect(stdout).To(ContainSubstring(`hash = "sha512"`))
		})

		It("reflects environment overrides in show", func() {
			Expect(os.Setenv("HASHART_SEARCH_HASH", "md5")).To(Succeed())
			DeferCleanup(os.Unsetenv, "HASHART_SEARCH_HASH")

			stdout, err := execute("config", "show")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring(`hash = "md5"`))
		})
	})

	Describe("bench", func() {
		It("writes a predefined scenario set", func() {
			path := filepath.Join(dir, "blocks.json")
			stdout, err := execute("bench", "--set", "blocks", "--save-scenarios", path)
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("wrote 4 scenarios"))
			Expect(path).To(BeAnExistingFile())
		})

		It("rejects an unknown set", func() {
			_, err := execute("bench", "--set", "everything")
			Expect(err).To(HaveOccurred())
		})
	})
})
