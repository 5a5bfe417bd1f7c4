package cliplugins

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"usd/internal/service"
)

type BrowseCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewBrowseCommand(deps *Deps) *BrowseCommand {
	return &BrowseCommand{deps: deps}
}

func (b *BrowseCommand) Meta() *cobra.Command {
	if b.cmd != nil {
		return b.cmd
	}
	b.cmd = &cobra.Command{
		Use:   "browse",
		Short: "List the services announced on the group",
		Long: "Joins the multicast group, asks every peer for its services and prints what answered " +
			"within --wait. With --follow it prints services as they come and go until interrupted.",
		Args: cobra.NoArgs,
	}
	b.cmd.Flags().DurationP("wait", "w", 2*time.Second, "how long to collect answers")
	b.cmd.Flags().BoolP("follow", "f", false, "stream service events")
	return b.cmd
}

func (b *BrowseCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	op := "cliplugins.Browse"

	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return fmt.Errorf("flag --wait failed")
	}
	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return fmt.Errorf("flag --follow failed")
	}

	cfg, log, err := b.deps.load()
	if err != nil {
		return err
	}

	a := b.deps.newAnnouncer(ctx, cfg, log, nil)
	defer a.Stop()

	out := cmd.OutOrStdout()
	if follow {
		// callbacks run one at a time on the announcer worker
		a.AddServiceListener(&service.ListenerFuncs{
			Added: func(info service.Info) {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("+"), info)
			},
			Removed: func(info service.Info) {
				fmt.Fprintf(out, "%s %s\n", color.RedString("-"), info)
			},
		})
	}

	if err := a.Start(nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if follow {
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	return printServices(out, a.KnownServices())
}
