package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/qaroom/internal/domain"
	grpcx "github.com/cwrk-planet/qaroom/internal/transport/grpc"
)

type WatchOptions struct {
	*RootOptions
	Addr  string
	Token string
	Once  bool
}

// NewWatchCommand streams a room from a running server over gRPC and prints
// one JSON RoomView per line.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <room-id>",
		Short: "Print live room state as JSON lines",
		Long: `Connect to the gRPC API of a running qaroom server and print the room
view after every change. With --token the view is personalised: likeId is
set on questions the token's user has liked.

Example:
  qaroom watch -a localhost:9090 01HQ0000000000000000000000
  qaroom watch --once --token "$(qaroom token --user ann)" 01HQ0000000000000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := opts.Addr
			if addr == "" {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					return fmt.Errorf("watch: no --addr and %w", err)
				}
				addr = cfg.GRPC.Addr
			}
			if addr == "" {
				return errors.New("watch: grpc address is not configured")
			}

			client, cc, err := grpcx.Dial(addr, opts.Token)
			if err != nil {
				return err
			}
			defer func() { _ = cc.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			roomID := domain.RoomID(args[0])
			if opts.Once {
				view, err := client.GetRoom(ctx, roomID)
				if err != nil {
					return err
				}
				return printView(out, view)
			}
			err = client.WatchRoom(ctx, roomID, func(view domain.RoomView, err error) error {
				if errors.Is(err, domain.ErrRoomNotFound) {
					_, werr := fmt.Fprintf(cmd.ErrOrStderr(), "room %s not found, waiting\n", roomID)
					return werr
				}
				return printView(out, view)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Addr, "addr", "a", "", "gRPC address (default: grpc.addr from config)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "access token to watch as a signed-in viewer")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "print the current state and exit")

	return cmd
}

func printView(w io.Writer, v domain.RoomView) error {
	return json.NewEncoder(w).Encode(v)
}
