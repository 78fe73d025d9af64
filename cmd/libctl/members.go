package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMembersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage library members (admin)",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all members",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.identity()
				if err != nil {
					return err
				}
				members, err := client.ListMembers(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{{"MEMBER", "USER", "SINCE", "STATUS"}}
				for _, m := range members {
					rows = append(rows, []string{
						strconv.FormatInt(m.MemberID, 10),
						strconv.FormatInt(m.UserID, 10),
						m.MembershipDate.Format("2006-01-02"),
						string(m.Status),
					})
				}
				printTable(rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <userId>",
			Short: "Enroll a user as a member",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid user id %q", args[0])
				}
				client, err := a.identity()
				if err != nil {
					return err
				}
				member, err := client.CreateMember(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Printf("Member %d enrolled for user %d\n", member.ID, member.UserID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "deactivate <memberId>",
			Short: "Deactivate a member (refused while they hold active loans)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				memberID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid member id %q", args[0])
				}
				client, err := a.identity()
				if err != nil {
					return err
				}
				if err := client.DeactivateMember(cmd.Context(), memberID); err != nil {
					return err
				}
				fmt.Printf("Member %d deactivated\n", memberID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore <memberId>",
			Short: "Restore a deactivated member",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				memberID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid member id %q", args[0])
				}
				client, err := a.identity()
				if err != nil {
					return err
				}
				if err := client.RestoreMember(cmd.Context(), memberID); err != nil {
					return err
				}
				fmt.Printf("Member %d restored\n", memberID)
				return nil
			},
		},
	)
	return cmd
}
