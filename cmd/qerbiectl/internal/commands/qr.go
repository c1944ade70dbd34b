package commands

import (
	"fmt"
	"strings"

	qrdomain "github.com/qerbie/qerbie-backend/internal/qr/domain"
	qrservice "github.com/qerbie/qerbie-backend/internal/qr/service"
	"github.com/spf13/cobra"
)

func newQRCommand(connect Connector) *cobra.Command {
	qrCmd := &cobra.Command{
		Use:   "qr",
		Short: "Manage QR codes",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a booking QR code or rotate a table or queue QR code",
		Long: `Issue prints the public URL a QR code should encode.

--kind booking creates a new booking link for barbershops, pet shops and salons.
--kind table and --kind queue replace the token of the table or queue given by
--target, which invalidates any printed code for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			merchantID, _ := flags.GetString("merchant")
			kind, _ := flags.GetString("kind")
			target, _ := flags.GetString("target")
			label, _ := flags.GetString("label")

			if kind != qrdomain.KindBooking && target == "" {
				return fmt.Errorf("--target is required for --kind %s", kind)
			}

			env, err := connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			var token string
			switch kind {
			case qrdomain.KindBooking:
				m, err := env.Merchants.Get(ctx, merchantID)
				if err != nil {
					return describe(err)
				}
				t, err := env.QR.IssueBookingToken(ctx, merchantID, m.BusinessType, &qrservice.IssueBookingTokenRequest{Label: label})
				if err != nil {
					return describe(err)
				}
				token = t.Token
			case qrdomain.KindTable:
				token, err = env.QR.RotateTableToken(ctx, merchantID, target)
			case qrdomain.KindQueue:
				token, err = env.QR.RotateQueueToken(ctx, merchantID, target)
			default:
				return fmt.Errorf("unknown kind %q: use booking, table or queue", kind)
			}
			if err != nil {
				return describe(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(env.PublicBaseURL, "/")+"/p/"+token)
			return nil
		},
	}
	issueCmd.Flags().String("merchant", "", "Merchant ID")
	issueCmd.Flags().String("kind", qrdomain.KindBooking, "booking, table or queue")
	issueCmd.Flags().String("target", "", "Table or queue ID")
	issueCmd.Flags().String("label", "", "Label for a booking QR code")
	_ = issueCmd.MarkFlagRequired("merchant")

	qrCmd.AddCommand(issueCmd)
	return qrCmd
}
