package cliplugins

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"usd/internal/catalog"
)

type AddCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewAddCommand(deps *Deps) *AddCommand {
	return &AddCommand{deps: deps}
}

func (a *AddCommand) Meta() *cobra.Command {
	if a.cmd != nil {
		return a.cmd
	}
	a.cmd = &cobra.Command{
		Use:   "add",
		Short: "Add a service to the catalog",
		Long:  "Adds or replaces a service in the catalog. A running daemon announces it after the next reload.",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			cobra.BashCompOneRequiredFlag: "true",
		},
	}
	a.cmd.Flags().StringP("name", "n", "", "service name (required)")
	a.cmd.Flags().StringP("endpoint", "e", "", "service endpoint URI (required)")
	a.cmd.Flags().String("id", "", "service id, a random UUID when empty")
	a.cmd.Flags().StringArrayP("prop", "p", nil, "property as key=value, repeatable")
	return a.cmd
}

func (a *AddCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("name")
	if err != nil || name == "" {
		return fmt.Errorf("flag --name is required")
	}
	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil || endpoint == "" {
		return fmt.Errorf("flag --endpoint is required")
	}
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return fmt.Errorf("flag --id failed")
	}
	if id == "" {
		id = uuid.NewString()
	}
	rawProps, err := cmd.Flags().GetStringArray("prop")
	if err != nil {
		return fmt.Errorf("flag --prop failed")
	}
	props, err := parseProps(rawProps)
	if err != nil {
		return err
	}

	c, err := a.deps.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()

	rec := catalog.Record{ID: id, Name: name, Endpoint: endpoint, Properties: props}
	if err := c.Put(rec); err != nil {
		return fmt.Errorf("failed to add service %s: %w", id, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
