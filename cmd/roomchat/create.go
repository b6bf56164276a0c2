package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/router"
)

func newCreateCommand(root *rootOptions) *cobra.Command {
	var (
		storeURL string
		code     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Allocate a new room and print its code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(nopLogger())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store-url") {
				cfg.StoreURL = storeURL
			}

			logger, closer := clientLogger(cfg)
			defer closer.Close()

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			client := newRoomClient(cfg, st, logger)
			created, err := roomchat.WithTimeout(cmd.Context(), cfg.RequestTimeout, func(ctx context.Context) (string, error) {
				return client.CreateRoom(ctx, code)
			})
			if err != nil {
				return fmt.Errorf("create room: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", created, router.RoomPath(created))
			return nil
		},
	}
	cmd.Flags().StringVar(&storeURL, "store-url", "", "document service URL; empty uses the embedded store")
	cmd.Flags().StringVar(&code, "code", "", "preferred room code, used when free")
	return cmd
}

func nopLogger() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
