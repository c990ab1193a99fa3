package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/jirwin/quirc/pkg/config"
)

const Version = "0.1.0"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "quirc"
	app.Version = Version
	app.Usage = "an IRC bot"
	app.Action = run
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "The settings file to use, by name or path.",
			Value:  "default",
			EnvVar: "QUIRC_CONFIG",
		},
		cli.StringFlag{
			Name:   "config-dir",
			Usage:  "The directory holding settings files.",
			Value:  config.DefaultHomeDir(),
			EnvVar: "QUIRC_CONFIG_DIR",
		},
		cli.BoolFlag{
			Name:   "dev",
			Usage:  "Log with the development logger.",
			EnvVar: "DEV_MODE",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Connect and run the bot (the default).",
			Action: run,
		},
		configCommand(),
		pluginsCommand(),
	}

	return app
}

// settingsPath resolves the --config flag against --config-dir.
func settingsPath(c *cli.Context) string {
	return config.FindConfig(c.GlobalString("config-dir"), c.GlobalString("config"))
}

// loadSettings reads the settings file, failing with exit code 2 when it cannot be read.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	path := settingsPath(c)
	settings, err := config.Load(path)
	if err != nil {
		return nil, cli.NewExitError(fmt.Sprintf("unable to load settings %s: %s", path, err), 2)
	}
	return settings, nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
