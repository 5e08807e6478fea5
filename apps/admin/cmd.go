package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("a password is required")
)

type commandLine struct {
	db       *sqlx.DB
	validate *validator.Validate
	usrRepo  user.Repository
	catSvc   *catalog.Service
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Institute backend administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(cli.migrateCommand())
	cmd.AddCommand(cli.addUserCommand())
	cmd.AddCommand(cli.resetPasswordCommand())
	cmd.AddCommand(cli.seedCommand())

	return cmd
}

// run executes the command line args, without the program name.
func (cli *commandLine) run(ctx context.Context, out io.Writer, args []string) error {
	cmd := cli.rootCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}
