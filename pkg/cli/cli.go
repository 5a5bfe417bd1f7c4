// Package cli is a small plugin registry on top of cobra. Every command is a plugin
// that describes itself with Meta and runs with the context given to NewCLI.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type CommandPlugin interface {
	Meta() *cobra.Command
	Execute(ctx context.Context, cmd *cobra.Command, args []string) error
}

type CLI struct {
	ctx     context.Context
	rootCmd *cobra.Command
	plugins []CommandPlugin
}

func NewCLI(ctx context.Context, use, short string) *CLI {
	return &CLI{
		ctx: ctx,
		rootCmd: &cobra.Command{
			Use:           use,
			Short:         short,
			SilenceUsage:  true,
			SilenceErrors: true,
		},
		plugins: make([]CommandPlugin, 0, 10),
	}
}

// Root gives access to the root command, for persistent flags and output redirection
func (c *CLI) Root() *cobra.Command {
	return c.rootCmd
}

func (c *CLI) RegisterPlugin(p CommandPlugin) {
	c.plugins = append(c.plugins, p)
	cmd := p.Meta()
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		for _, plugin := range c.plugins {
			if plugin.Meta() == cmd {
				return plugin.Execute(c.ctx, cmd, args)
			}
		}
		return fmt.Errorf("unknown command %q", cmd.Name())
	}
	c.rootCmd.AddCommand(cmd)
}

// Names lists the registered plugin commands
func (c *CLI) Names() []string {
	names := make([]string, 0, len(c.plugins))
	for _, plugin := range c.plugins {
		names = append(names, plugin.Meta().Name())
	}
	return names
}

func (c *CLI) initCompletion() {
	c.rootCmd.CompletionOptions.DisableDefaultCmd = true
	c.rootCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string,
	) ([]string, cobra.ShellCompDirective) {
		return c.Names(), cobra.ShellCompDirectiveNoFileComp
	}
	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate completion script",
		Long:      "Generate the completion script for bash, zsh, fish or powershell",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := "bash"
			if len(args) > 0 {
				shell = args[0]
			}
			switch shell {
			case "bash":
				return c.rootCmd.GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return c.rootCmd.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return c.rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return c.rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unsupported shell: %s", shell)
			}
		},
	}
	// source <(usd completion zsh)
	c.rootCmd.AddCommand(completionCmd)
}

// Run executes the command line. Nil args means os.Args[1:].
func (c *CLI) Run(args []string) error {
	c.initCompletion()
	if args != nil {
		c.rootCmd.SetArgs(args)
	}
	return c.rootCmd.ExecuteContext(c.ctx)
}
