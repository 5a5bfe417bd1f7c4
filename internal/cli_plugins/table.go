package cliplugins

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"usd/internal/service"
)

func printServices(out io.Writer, infos []service.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(out, color.YellowString("no services"))
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bold("ID"), bold("NAME"), bold("ENDPOINT"), bold("PROPERTIES"))
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Name, info.Endpoint, formatProps(info.Properties))
	}
	return w.Flush()
}

// formatProps renders properties as k=v pairs sorted by key
func formatProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+props[k])
	}
	return strings.Join(pairs, ",")
}

// parseProps is the inverse of formatProps for repeated --prop flags
func parseProps(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("property %q is not key=value", v)
		}
		props[k] = val
	}
	return props, nil
}
