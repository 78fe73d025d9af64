package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/madhur53/library-management-system/internal/clients"
	"github.com/madhur53/library-management-system/internal/session"
)

type app struct {
	gatewayURL string
	sessions   *session.Manager
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Command-line client for the library management system",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.gatewayURL == "" {
				a.gatewayURL = os.Getenv("LIBRARY_GATEWAY_URL")
			}
			if a.gatewayURL == "" {
				a.gatewayURL = "http://localhost:8080"
			}
			path, err := session.DefaultPath()
			if err != nil {
				return err
			}
			a.sessions = session.NewManager(path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.gatewayURL, "gateway", "",
		"gateway base URL (defaults to $LIBRARY_GATEWAY_URL or http://localhost:8080)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newBooksCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newMembersCmd(a),
	)
	return root
}

func (a *app) identity() (*clients.IdentityClient, error) {
	client := clients.NewIdentityClient(a.gatewayURL, nil)
	principal, err := a.sessions.Current()
	if err != nil {
		return client, nil
	}
	return client.WithToken(principal.Token), nil
}

func (a *app) catalog() *clients.CatalogClient {
	return clients.NewCatalogClient(a.gatewayURL, nil)
}

func printTable(rows [][]string) {
	widths := map[int]int{}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for _, row := range rows {
		for i, cell := range row {
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
}
