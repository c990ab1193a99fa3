package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/jirwin/quirc/pkg/config"
)

func configCommand() cli.Command {
	return cli.Command{
		Name:  "config",
		Usage: "Manage settings files.",
		Subcommands: []cli.Command{
			{
				Name:   "list",
				Usage:  "List the settings files in the config directory.",
				Action: configList,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "ext, e", Value: config.DefaultExtension, Usage: "The settings file extension."},
				},
			},
			{
				Name:   "init",
				Usage:  "Create a settings file.",
				Action: configInit,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "nick", Value: "quirc", Usage: "The bot's nick."},
					cli.StringFlag{Name: "host", Value: "irc.libera.chat", Usage: "The IRC server."},
					cli.IntFlag{Name: "port", Usage: "The IRC server's port."},
					cli.BoolFlag{Name: "ssl", Usage: "Connect with TLS."},
					cli.StringFlag{Name: "owner", Usage: "The owner's nick."},
					cli.StringSliceFlag{Name: "channel", Usage: "A channel to join. May be repeated."},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a setting.",
				ArgsUsage: "<section> <option>",
				Action:    configGet,
			},
			{
				Name:      "set",
				Usage:     "Change a setting and save the file.",
				ArgsUsage: "<section> <option> <value>",
				Action:    configSet,
			},
			{
				Name:      "unset",
				Usage:     "Remove a setting and save the file.",
				ArgsUsage: "<section> <option>",
				Action:    configUnset,
			},
		},
	}
}

func configList(c *cli.Context) error {
	names, err := config.EnumerateConfigs(c.GlobalString("config-dir"), c.String("ext"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func configInit(c *cli.Context) error {
	path := settingsPath(c)
	if filepath.Ext(path) == "" {
		path += config.DefaultExtension
	}

	err := config.Init(path, config.InitValues{
		Nick:     c.String("nick"),
		Host:     c.String("host"),
		Port:     c.Int("port"),
		UseSSL:   c.Bool("ssl"),
		Owner:    c.String("owner"),
		Channels: c.StringSlice("channel"),
	})
	if errors.Is(err, os.ErrExist) {
		return cli.NewExitError(fmt.Sprintf("settings file %s already exists", path), 1)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Fprintf(c.App.Writer, "Created %s\n", path)
	return nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.NewExitError(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.FullName(), c.Command.ArgsUsage), 1)
	}
	return nil
}

func configGet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	value, err := settings.Get(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, value)
	return nil
}

func configSet(c *cli.Context) error {
	if err := requireArgs(c, 3); err != nil {
		return err
	}
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	if err := settings.Set(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := settings.Save(); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	return nil
}

func configUnset(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	section, option := c.Args().Get(0), c.Args().Get(1)
	removed, err := settings.Unset(section, option)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if !removed {
		return cli.NewExitError(fmt.Sprintf("%s: %s.%s", config.ErrNoOption, section, option), 1)
	}
	if err := settings.Save(); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	return nil
}
