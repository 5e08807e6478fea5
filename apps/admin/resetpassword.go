package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RouahImad/Project-epg-sub000/core"
)

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var uname string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password",
		Long:  "Reset a user's password. The password is prompted next.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			if err = cli.resetPassword(cmd.Context(), uname, pwd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}
