package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

type addUserOptions struct {
	username string
	email    string
	name     string
	super    bool
}

func (cli *commandLine) addUserCommand() *cobra.Command {
	opts := &addUserOptions{}

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an active staff user",
		Long: `Create an active staff user, or update the one with the same username or email.
The password is prompted next.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), *opts, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved\n", usr.Username, usr.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "the user's username")
	cmd.Flags().StringVar(&opts.email, "email", "", "the user's email")
	cmd.Flags().StringVar(&opts.name, "name", "", "the user's display name (defaults to the username)")
	cmd.Flags().BoolVar(&opts.super, "super", false, "grant the super admin role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOptions, pwd string) (user.User, error) {
	uname := core.CleanString(opts.username, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)
	name := core.CleanString(opts.name)
	if uname == "" || email == "" {
		return user.User{}, errors.New("username and email are required")
	}

	usr, err := cli.findUser(ctx, uname, email)
	exists := err == nil
	if err != nil && !core.IsNotFound(err) {
		return user.User{}, err
	}
	now := core.Now()
	if !exists {
		usr = user.User{ID: core.NewID(), CreatedAt: now, Role: user.RoleAdmin}
	}

	usr.Username = uname
	usr.Email = email
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if opts.super {
		usr.Role = user.RoleSuperAdmin
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	if exists {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, uname, email, usr); err != nil {
			return user.User{}, err
		}
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
		return usr, errors.Wrap(err, "updating user")
	}
	usr, err = cli.usrRepo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if core.IsNotFound(err) {
		return cli.usrRepo.GetUserByUsernameOrEmail(ctx, email)
	}
	return usr, err
}
