package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/circdesk/internal/capture"
	"github.com/lehigh-university-libraries/circdesk/internal/circulation"
	"github.com/lehigh-university-libraries/circdesk/internal/desk"
	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/spf13/cobra"
)

func newDeskCmd(opts *globalOptions) *cobra.Command {
	var (
		mode     string
		member   int64
		device   string
		prefix   string
		auto     bool
		journalPath string
		station  string
	)

	cmd := &cobra.Command{
		Use:   "desk",
		Short: "Run the interactive circulation desk",
		Long: `Runs the circulation desk on this terminal.

Codes are read from the scanner device when one is configured, otherwise they
are typed. Each captured code is checked out, returned or looked up depending
on the mode; type /help at the prompt for the operator commands.`,
		Example: `  # Keyboard-only desk checking out to member 7
  circdesk desk --member 7

  # Return desk with a USB QR scanner
  circdesk desk --mode return --device /dev/ttyACM0 --prefix ']Q1'

  # Send each scan as soon as it is read
  circdesk desk --auto`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := opts.client()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				cfg.Mode = mode
			}
			if flags.Changed("member") {
				cfg.Member = member
			}
			if flags.Changed("device") {
				cfg.Capture.Device = device
			}
			if flags.Changed("prefix") {
				cfg.Capture.Prefix = prefix
			}
			if flags.Changed("auto") {
				cfg.AutoDispatch = auto
			}
			if flags.Changed("journal") {
				cfg.Journal = journalPath
			}
			if flags.Changed("station") {
				cfg.Station = station
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			m, err := circulation.ParseMode(cfg.Mode)
			if err != nil {
				return err
			}

			var opener capture.Opener
			if cfg.Capture.Device != "" {
				opener = capture.DeviceOpener(cfg.Capture.Device)
			}
			session := capture.NewSession(opener, capture.LineDecoder{Prefix: cfg.Capture.Prefix})

			store, err := journal.Open(cfg.Journal)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					slog.Error("Unable to close journal", "err", err)
				}
			}()

			term := desk.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), client)
			ctrl := circulation.NewController(client, session,
				circulation.WithMode(m),
				circulation.WithMember(cfg.Member),
				circulation.WithAutoDispatch(cfg.AutoDispatch),
				circulation.WithResetDelay(cfg.ResetDelay),
				circulation.WithRecorder(store, cfg.Station),
				circulation.WithOnChange(term.Show),
			)

			slog.Info("Starting desk", "station", cfg.Station, "api", cfg.APIURL, "device", cfg.Capture.Device, "journal", cfg.Journal)
			return runDesk(cmd.Context(), ctrl, term)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "checkout", "Initial mode (checkout, return or track)")
	cmd.Flags().Int64Var(&member, "member", 0, "Initially selected member id")
	cmd.Flags().StringVar(&device, "device", "", "Scanner device emitting one code per line (empty for keyboard only)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Symbology prefix the scanner prepends to each code")
	cmd.Flags().BoolVar(&auto, "auto", false, "Send checkouts and returns as soon as a code is captured")
	cmd.Flags().StringVar(&journalPath, "journal", "", "Path to the journal database")
	cmd.Flags().StringVar(&station, "station", "", "Station name recorded in the journal")

	return cmd
}

// runDesk runs the controller loop alongside the terminal until the operator
// quits or the context is cancelled (Ctrl+C)
func runDesk(ctx context.Context, ctrl *circulation.Controller, term *desk.Terminal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- ctrl.Run(ctx)
	}()

	termErr := term.Run(ctx, ctrl)
	cancel()
	if err := <-loopErr; err != nil {
		return fmt.Errorf("desk stopped: %w", err)
	}
	ctrl.Wait()
	return termErr
}
