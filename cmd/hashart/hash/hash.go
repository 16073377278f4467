// Package hashcmder provides the hash command, which prints the block hashes of an image.
package hashcmder

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/config"
	"github.com/Niederb/hash-art/hashing"
	"github.com/Niederb/hash-art/images"
	"github.com/Niederb/hash-art/pipeline"
)

var (
	indexStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// hashFlags is the subset of search flags that shape the grid and the digest.
var hashFlags = config.FlagSet{
	config.FlagDecoder:   config.SearchFlags[config.FlagDecoder],
	config.FlagBlockSize: config.SearchFlags[config.FlagBlockSize],
	config.FlagEdge:      config.SearchFlags[config.FlagEdge],
	config.FlagPadFill:   config.SearchFlags[config.FlagPadFill],
	config.FlagHash:      config.SearchFlags[config.FlagHash],
}

type hashCommander struct {
	flags  config.Config
	quiet  bool
	render string
}

const hashLongDesc string = `Print the per-block hashes of an image in row-major order.

Use the same --block-size, --edge and --hash as the search to see exactly which
digests a search compares. Use --quiet to print only the hex digests.

Use --render to paint every digest back into its block and write the resulting
hash art as a lossless image (png, bmp or webp). With the defaults, each 64-byte
SHA-512 digest exactly fills one 8x8 gray block.

Example:
  hashart hash target.png
  hashart hash target.png -b 16x8 --hash sha256 --quiet
  hashart hash target.png --render art.png`

const hashShortDesc string = "Print the block hashes of an image"

func NewHashCmd() *cobra.Command {
	cmder := &hashCommander{}

	cmd := &cobra.Command{
		Use:   "hash <image>",
		Short: hashShortDesc,
		Long:  hashLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd, hashFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.OutOrStdout(), args[0], cfg)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, hashFlags, config.FlagDecoder, &f.Image.Decoder)
	config.AddStringFlag(cmd, hashFlags, config.FlagBlockSize, &f.Search.BlockSize)
	config.AddStringFlag(cmd, hashFlags, config.FlagEdge, &f.Search.Edge)
	config.AddUint8Flag(cmd, hashFlags, config.FlagPadFill, &f.Search.PadFill)
	config.AddStringFlag(cmd, hashFlags, config.FlagHash, &f.Search.Hash)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only the digests, one per line")
	cmd.Flags().StringVarP(&cmder.render, "render", "r", "", "Write the digests painted into their blocks to this image")

	return cmd
}

func (c *hashCommander) run(out io.Writer, path string, cfg *config.Config) error {
	size, err := blocks.ParseSize(cfg.Search.BlockSize)
	if err != nil {
		return err
	}
	edge, err := blocks.ParseEdgePolicy(cfg.Search.Edge)
	if err != nil {
		return err
	}
	alg, err := hashing.ParseAlgorithm(cfg.Search.Hash)
	if err != nil {
		return err
	}

	set, grid, err := pipeline.Hashes(path, cfg.Image.Decoder, blocks.Options{Size: size, Policy: edge, Fill: cfg.Search.PadFill}, alg)
	if err != nil {
		return err
	}

	if c.render != "" {
		art, err := hashing.Render(set, grid)
		if err != nil {
			return err
		}
		if err := images.Save(c.render, art); err != nil {
			return err
		}
	}

	if c.quiet {
		for _, h := range set {
			if _, err := fmt.Fprintln(out, h.String()); err != nil {
				return err
			}
		}
		return nil
	}

	_, _ = fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s: %d blocks (%dx%d of %s, %s)",
		path, grid.Len(), grid.Cols, grid.Rows, grid.Size, alg)))
	for i, h := range set {
		b := grid.Block(i)
		if _, err := fmt.Fprintf(out, "%s  %s\n",
			indexStyle.Render(fmt.Sprintf("%5d (%d,%d)", i, b.Row, b.Col)),
			hashStyle.Render(h.String()),
		); err != nil {
			return err
		}
	}
	if c.render != "" {
		_, _ = fmt.Fprintln(out, dimStyle.Render("wrote "+c.render))
	}
	return nil
}
