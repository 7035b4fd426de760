package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-content-conversions/internal/conversion"
	"github.com/tendant/simple-content-conversions/internal/generator"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/internal/responsive"
	"github.com/tendant/simple-content-conversions/internal/workspace"
	"github.com/tendant/simple-content-conversions/pkg/client"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func newWidthsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "widths <image>",
		Short: "Print the responsive width schedule of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			widths, err := responsive.CalculateWidths(args[0])
			if err != nil {
				return err
			}
			for _, w := range widths {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}
}

func newDriversCommand() *cobra.Command {
	var tools generator.Tools
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "Show which format drivers are usable on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := generator.DefaultSelector(tools).Status()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tINSTALLED\tEXTENSIONS")
			for _, s := range status {
				fmt.Fprintf(tw, "%s\t%v\t%v\n", s.Kind, s.RequirementsInstalled, s.Extensions)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&tools.PDFToPPM, "pdftoppm", "pdftoppm", "pdftoppm binary")
	cmd.Flags().StringVar(&tools.RSVGConvert, "rsvg-convert", "rsvg-convert", "rsvg-convert binary")
	cmd.Flags().StringVar(&tools.FFmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newConvertCommand() *cobra.Command {
	var conversionsFile, name, outDir string
	var tools generator.Tools

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Run one declared conversion on a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if conversionsFile == "" {
				return errors.New("--conversions is required")
			}
			registry, err := conversion.LoadFile(conversionsFile)
			if err != nil {
				return err
			}
			conv, err := registry.All().ByName(name)
			if err != nil {
				return err
			}

			out, err := convertFile(cmd, args[0], conv, tools, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversionsFile, "conversions", "", "TOML conversion declarations")
	cmd.Flags().StringVar(&name, "name", "", "Conversion name")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&tools.PDFToPPM, "pdftoppm", "pdftoppm", "pdftoppm binary")
	cmd.Flags().StringVar(&tools.RSVGConvert, "rsvg-convert", "rsvg-convert", "rsvg-convert binary")
	cmd.Flags().StringVar(&tools.FFmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary")
	cmd.MarkFlagRequired("name")
	return cmd
}

// convertFile runs conv on a workspace copy of path and moves the result to
// outDir as {name}.{ext}
func convertFile(cmd *cobra.Command, path string, conv *conversion.Conversion, tools generator.Tools, outDir string) (string, error) {
	ws, err := workspace.Acquire("")
	if err != nil {
		return "", err
	}
	defer ws.Delete()

	source := ws.Join(filepath.Base(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if err := os.WriteFile(source, data, 0o644); err != nil {
		return "", fmt.Errorf("copy source: %w", err)
	}

	driver, ok := generator.DefaultSelector(tools).Select(source)
	if !ok {
		return "", fmt.Errorf("no driver can convert %s", path)
	}
	slog.Debug("driver selected", "kind", driver.Kind(), "file", path)

	intermediate, err := driver.Convert(cmd.Context(), source, conv)
	if err != nil {
		return "", err
	}

	m := manipulator.NewFileManipulator(manipulator.Config{}, manipulator.Deps{Logger: slog.Default()})
	result, err := m.PerformConversion(cmd.Context(), pipeline.Media{FileName: filepath.Base(path)}, conv, intermediate)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, pipeline.DerivedFile{
		ConversionName: conv.Name(),
		Extension:      strings.TrimPrefix(filepath.Ext(result), "."),
	}.FileName())

	out, err := os.ReadFile(result)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return dst, nil
}

func newSubmitCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <media.json>",
		Short: "Ask a conversion service to create the derived files of a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var media pipeline.Media
			if err := json.Unmarshal(data, &media); err != nil {
				return fmt.Errorf("decode media: %w", err)
			}

			resp, err := client.New(opts.server).CreateDerivedFiles(cmd.Context(), media)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}
