package main

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/router"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/tui"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var storeURL string

	cmd := &cobra.Command{
		Use:   "chat [room-code]",
		Short: "Open the terminal chat client, optionally straight into a room",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			sess, err := session.NewFileStore(cfg.SessionPath)
			if err != nil {
				return err
			}
			logger.Debug().Str("path", sess.Path()).Msg("session loaded")

			start := router.LobbyPath
			if len(args) == 1 {
				start = router.RoomPath(args[0])
			}

			return tui.Run(cmd.Context(), tui.Options{
				Rooms:     newRoomClient(cfg, st, logger),
				Session:   sess,
				Timeout:   cfg.RequestTimeout,
				Logger:    logger,
				StartPath: start,
			})
		},
	}
	cmd.Flags().StringVar(&storeURL, "store-url", "", "document service URL; empty uses the embedded store")
	return cmd
}
