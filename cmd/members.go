package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMembersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List and register members",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every member and how many books they have out",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			members, err := client.ListMembers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list members: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(members) == 0 {
				fmt.Fprintln(out, "No members registered")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-5s %s\n", "ID", "LOANS", "NAME")
			for _, m := range members {
				open := 0
				for _, l := range m.Loans {
					if l.Open() {
						open++
					}
				}
				fmt.Fprintf(out, "%-6d %-5d %s\n", m.ID, open, m.Name)
			}
			return nil
		},
	})

	var name string
	register := &cobra.Command{
		Use:     "register",
		Short:   "Register a member",
		Example: `  circdesk members register --name "Paul Atreides"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client()
			if err != nil {
				return err
			}
			m, err := client.RegisterMember(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("failed to register member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered member %d: %s\n", m.ID, m.Name)
			return nil
		},
	}
	register.Flags().StringVar(&name, "name", "", "Member name")
	_ = register.MarkFlagRequired("name")
	cmd.AddCommand(register)

	return cmd
}
