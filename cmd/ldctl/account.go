package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
	"github.com/rog/backend/internal/service"
)

func accountCommand(cc *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(accountCreateCommand(cc))
	return cmd
}

func accountCreateCommand(cc *cliContext) *cobra.Command {
	var input service.CreateMemberInput
	var ldID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account and print its generated PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := cc.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			members := service.NewMemberService(pool, repository.NewPgAccountRepository(), cc.cfg.BcryptCost, cc.logger)
			operator := domain.Identity{Code: "ldctl", Name: "ldctl", AssociationID: ldID, Role: domain.RoleSuper}
			created, err := members.Create(ctx, operator, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "code=%s ldId=%s role=%s pin=%s\n",
				created.User.Code, created.User.AssociationID, created.User.Role, created.PIN)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Code, "code", "", "account code (required)")
	cmd.Flags().StringVar(&input.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&ldID, "ld", "", "association id (required)")
	cmd.Flags().StringVar(&input.Role, "role", string(domain.RoleMember), "member, moderator, admin or super")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("ld")
	return cmd
}
