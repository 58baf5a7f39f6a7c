package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/livestage/internal/captoken"
	"github.com/dkeye/livestage/internal/domain"
)

var (
	tokenRoom     string
	tokenIdentity string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue or inspect capability tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a capability token for a room and identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		codec, err := captoken.NewCodec(cfg.Capability.Secret, captoken.WithTTL(cfg.Capability.TTL))
		if err != nil {
			return err
		}
		room, err := domain.ParseRoomName(tokenRoom)
		if err != nil {
			return err
		}
		id, err := domain.NewIdentity(tokenIdentity)
		if err != nil {
			return err
		}
		token, err := codec.Issue(room, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a capability token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := captoken.NewCodec(cfg.Capability.Secret)
		if err != nil {
			return err
		}
		s, err := codec.Verify(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenRoom, "room", "", "room name")
	tokenIssueCmd.Flags().StringVar(&tokenIdentity, "identity", "", "participant identity")
	_ = tokenIssueCmd.MarkFlagRequired("room")
	_ = tokenIssueCmd.MarkFlagRequired("identity")

	tokenCmd.AddCommand(tokenIssueCmd, tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}
