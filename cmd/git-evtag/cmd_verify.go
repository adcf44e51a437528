package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/evtag/pkg/config"
	"github.com/odvcencio/evtag/pkg/evtag"
)

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	var noSignature bool
	var mode string
	var allowedSigners string

	cmd := &cobra.Command{
		Use:   "verify <tag>",
		Short: "Verify a tag's signature and extended checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}

			if mode == "" {
				mode = s.cfg.Signature.Mode
			}
			skip := noSignature || mode == config.ModeNone

			v := &evtag.Verifier{DB: s.repo, Options: s.options(nil)}
			if !skip {
				v.Signatures, err = s.signatures(mode, allowedSigners)
				if err != nil {
					return err
				}
			}

			res, err := v.Verify(cmd.Context(), args[0], skip)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully verified: %s\n", res.Line)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&noSignature, "no-signature", "n", false, "do not verify the tag signature")
	cmd.Flags().StringVar(&mode, "signature-mode", "", "signature check: git, ssh or none (default from config)")
	cmd.Flags().StringVar(&allowedSigners, "allowed-signers", "", "allowed signers `FILE` for ssh mode")
	return cmd
}
