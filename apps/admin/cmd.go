package main

import (
	"database/sql"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/call"
	"github.com/trezcool/tutorly/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf      *core.Config
	logger    core.Logger
	db        *sql.DB // nil unless the postgres engine is used
	validate  *validator.Validate
	usrRepo   user.Repository
	usrSvc    user.Service
	connector call.Connector
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (postgres only)")
	fmt.Println("  adduser -email EMAIL -name NAME [-role ROLE] - create or update a user")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  callcheck -key KEY -remote KEY [-timeout DURATION] - dial a rendezvous key through the peer broker")
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of admin, tutor or student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	callCheckCmd := flag.NewFlagSet("callcheck", flag.ContinueOnError)
	callCheckKey := callCheckCmd.String("key", "", "The local rendezvous key.")
	callCheckRemote := callCheckCmd.String("remote", "", "The rendezvous key to dial.")
	callCheckTimeout := callCheckCmd.Duration("timeout", 30*time.Second, "How long to wait for the remote stream.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		_, err = cli.addUser(*addUserName, *addUserEmail, pwd, *addUserRole)
		return err

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "callcheck":
		if err := callCheckCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *callCheckKey == "" || *callCheckRemote == "" {
			callCheckCmd.Usage()
			return errHelp
		}
		state, err := cli.callCheck(*callCheckKey, *callCheckRemote, *callCheckTimeout)
		fmt.Printf("call state: %s\n", state)
		return err

	default:
		cli.printUsage()
		return errHelp
	}
}
