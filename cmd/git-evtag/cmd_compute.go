package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/odvcencio/evtag/pkg/evtag"
)

func newComputeCmd(opts *globalOptions) *cobra.Command {
	var verifyLine string
	var verbose bool
	var streamOut string

	cmd := &cobra.Command{
		Use:   "compute [rev]",
		Short: "Print the extended checksum line for a commit",
		Long: "Print the extended checksum line for rev (default HEAD). With\n" +
			"--verify-line, check a supplied checksum line instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			commit, err := evtag.ResolveCommit(s.repo, rev)
			if err != nil {
				return err
			}

			var stream io.WriteCloser
			if streamOut != "" {
				stream, err = createZstdFile(streamOut)
				if err != nil {
					return err
				}
				defer func() {
					if cerr := stream.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("write stream %s: %w", streamOut, cerr)
					}
				}()
			}

			res, err := evtag.Compute(cmd.Context(), s.repo, commit, s.options(stream))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				fmt.Fprintf(out, "# Git-EVTag-Stats: %s\n", res.Stats)
			}
			if strings.TrimSpace(verifyLine) != "" {
				if err := evtag.VerifyLine(verifyLine, res.Hex()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Successfully verified: %s\n", strings.TrimSpace(verifyLine))
				return nil
			}
			fmt.Fprintln(out, res.Line())
			return nil
		},
	}

	cmd.Flags().StringVar(&verifyLine, "verify-line", "", "check `LINE` against the computed checksum")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print traversal statistics")
	cmd.Flags().StringVar(&streamOut, "stream-out", "", "write the zstd-compressed hashed stream to `FILE`")
	return cmd
}

// zstdFile compresses into a file; Close flushes the encoder first.
type zstdFile struct {
	*zstd.Encoder
	f *os.File
}

func createZstdFile(path string) (*zstdFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create stream file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create stream file: %w", err)
	}
	return &zstdFile{Encoder: enc, f: f}, nil
}

func (z *zstdFile) Close() error {
	return errors.Join(z.Encoder.Close(), z.f.Close())
}
