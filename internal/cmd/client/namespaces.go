package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewNamespacesCommand constructs the `namespaces` command. Without a
// subcommand it lists namespaces; `namespaces types` lists the types of one.
func NewNamespacesCommand() *cobra.Command {
	nsCmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List namespaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := getTransport().EnumerateNamespaces(cmd.Context())
			if err != nil {
				return err
			}
			for _, ns := range list {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), ns)
			}
			return nil
		},
	}
	typesCmd := &cobra.Command{
		Use:   "types <namespace>",
		Short: "List the fact types published in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := getTransport().EnumerateTypes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range list {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	nsCmd.AddCommand(typesCmd)
	return nsCmd
}
