package cliplugins

import (
	"context"

	"github.com/spf13/cobra"

	"usd/internal/catalog"
	"usd/internal/service"
)

type ListCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewListCommand(deps *Deps) *ListCommand {
	return &ListCommand{deps: deps}
}

func (l *ListCommand) Meta() *cobra.Command {
	if l.cmd != nil {
		return l.cmd
	}
	l.cmd = &cobra.Command{
		Use:   "list",
		Short: "Print the services of the catalog",
		Args:  cobra.NoArgs,
	}
	return l.cmd
}

func (l *ListCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	cfg, _, err := l.deps.load()
	if err != nil {
		return err
	}

	recs, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	infos := make([]service.Info, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, rec.Service())
	}
	return printServices(cmd.OutOrStdout(), infos)
}
