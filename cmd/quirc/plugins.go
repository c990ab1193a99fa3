package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli"

	"github.com/jirwin/quirc/pkg/builtin_plugins"
	"github.com/jirwin/quirc/pkg/plugin_manager"
)

func pluginsCommand() cli.Command {
	return cli.Command{
		Name:  "plugins",
		Usage: "Inspect the builtin plugins.",
		Subcommands: []cli.Command{
			{
				Name:   "list",
				Usage:  "List the builtin plugins and whether the settings enable them.",
				Action: pluginsList,
			},
		},
	}
}

func pluginsList(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	pc, err := plugin_manager.NewConfig(settings)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	ids := []string{}
	for _, p := range builtin_plugins.All() {
		ids = append(ids, p.GetId())
	}
	sort.Strings(ids)

	for _, id := range ids {
		status := "enabled"
		if !pc.Enabled(id) {
			status = "disabled"
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", id, status)
	}
	return nil
}
