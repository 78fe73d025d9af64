package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/madhur53/library-management-system/internal/identity"
	"github.com/madhur53/library-management-system/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var asAdmin bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			password, err := promptPassword()
			if err != nil {
				return err
			}

			client, err := a.identity()
			if err != nil {
				return err
			}

			var result *identity.LoginResult
			if asAdmin {
				result, err = client.LoginAdmin(cmd.Context(), username, password)
			} else {
				result, err = client.LoginUser(cmd.Context(), username, password)
			}
			if err != nil {
				return err
			}

			principal := session.Principal{
				Username: username,
				Token:    result.Token,
			}
			if asAdmin && result.Admin != nil {
				principal.Type = session.PrincipalAdmin
				principal.AdminID = result.Admin.ID
			} else if result.User != nil {
				principal.Type = session.PrincipalUser
				principal.UserID = result.User.ID
			}

			if err := a.sessions.Begin(principal); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", username, principal.Type)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asAdmin, "admin", false, "sign in as an administrator")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.End(); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var input identity.RegisterUserInput

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new library user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Username = args[0]
			password, err := promptPassword()
			if err != nil {
				return err
			}
			input.Password = password

			client, err := a.identity()
			if err != nil {
				return err
			}
			user, err := client.RegisterUser(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Printf("Registered user %d (%s)\n", user.ID, user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&input.Address, "address", "", "postal address")
	return cmd
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
