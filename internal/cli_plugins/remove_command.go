package cliplugins

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"usd/internal/catalog"
)

type RemoveCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewRemoveCommand(deps *Deps) *RemoveCommand {
	return &RemoveCommand{deps: deps}
}

func (r *RemoveCommand) Meta() *cobra.Command {
	if r.cmd != nil {
		return r.cmd
	}
	r.cmd = &cobra.Command{
		Use:   "remove",
		Short: "Remove a service from the catalog",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			cobra.BashCompOneRequiredFlag: "true",
		},
	}
	r.cmd.Flags().String("id", "", "service id (required)")
	r.cmd.RegisterFlagCompletionFunc("id", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, _, err := r.deps.load()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		recs, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		ids := make([]string, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ID+"\t"+rec.Name)
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	})
	return r.cmd
}

func (r *RemoveCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	id, err := cmd.Flags().GetString("id")
	if err != nil || id == "" {
		return fmt.Errorf("flag --id is required")
	}

	c, err := r.deps.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Delete(id); err != nil {
		return fmt.Errorf("failed to remove service %s: %w", id, err)
	}
	return nil
}
