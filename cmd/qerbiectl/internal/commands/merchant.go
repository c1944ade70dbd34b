package commands

import (
	"fmt"

	merchantservice "github.com/qerbie/qerbie-backend/internal/merchant/service"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/spf13/cobra"
)

func newMerchantCommand(connect Connector) *cobra.Command {
	merchantCmd := &cobra.Command{
		Use:   "merchant",
		Short: "Manage merchants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a merchant owned by an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			ownerEmail, _ := flags.GetString("owner-email")
			phone, _ := flags.GetString("phone")

			req := &merchantservice.CreateMerchantRequest{}
			req.Name, _ = flags.GetString("name")
			req.Slug, _ = flags.GetString("slug")
			req.BusinessType, _ = flags.GetString("business-type")
			req.Timezone, _ = flags.GetString("timezone")
			if phone != "" {
				req.Phone = &phone
			}
			if err := httputil.Validate(req); err != nil {
				return describe(err)
			}

			env, err := connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.Close()

			owner, err := env.Users.GetByEmail(cmd.Context(), ownerEmail)
			if err != nil {
				if database.IsNoRows(err) {
					return fmt.Errorf("no account with email %s", ownerEmail)
				}
				return err
			}

			m, err := env.Merchants.Create(cmd.Context(), owner.ID, req)
			if err != nil {
				return describe(database.MapError(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created merchant %s (%s, %s) owned by %s\n", m.ID, m.Slug, m.BusinessType, owner.Email)
			return nil
		},
	}
	createCmd.Flags().String("owner-email", "", "Email of the account that will own the merchant")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("slug", "", "URL slug")
	createCmd.Flags().String("business-type", "", "restaurant, barbershop, salon, pet_shop or gym")
	createCmd.Flags().String("phone", "", "Contact phone in E.164 format")
	createCmd.Flags().String("timezone", "UTC", "IANA time zone")
	_ = createCmd.MarkFlagRequired("owner-email")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("slug")
	_ = createCmd.MarkFlagRequired("business-type")

	merchantCmd.AddCommand(createCmd)
	return merchantCmd
}
