package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the factcast client.
// It registers the fact and namespace command groups.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "factcast",
		Short: "factcast client commands",
	}
	AddCommands(root)
	return root
}

// AddCommands registers the client commands on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		NewPublishCommand(),
		NewSubscribeCommand(),
		NewNamespacesCommand(),
		NewFactCommand(),
		NewInfoCommand(),
	)
}
