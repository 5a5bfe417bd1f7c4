package cliplugins

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"usd/internal/catalog"
)

// importFile is the layout read by import:
//
//	services:
//	  - id: 3f0c...
//	    name: printer
//	    endpoint: ipp://10.0.0.5:631/
//	    properties:
//	      color: "true"
type importFile struct {
	Services []catalog.Record `yaml:"services"`
}

type ImportCommand struct {
	cmd  *cobra.Command
	deps *Deps
}

func NewImportCommand(deps *Deps) *ImportCommand {
	return &ImportCommand{deps: deps}
}

func (i *ImportCommand) Meta() *cobra.Command {
	if i.cmd != nil {
		return i.cmd
	}
	i.cmd = &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Add the services listed in a YAML file to the catalog",
		Long:  "Adds or replaces every service of the file in one transaction. Services without an id get a random UUID.",
		Args:  cobra.ExactArgs(1),
	}
	return i.cmd
}

func (i *ImportCommand) Execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for n := range file.Services {
		if file.Services[n].ID == "" {
			file.Services[n].ID = uuid.NewString()
		}
	}

	c, err := i.deps.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.PutAll(file.Services); err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d services\n", len(file.Services))
	return nil
}
