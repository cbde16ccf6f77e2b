package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	wsmaster "github.com/wsmaster/wsmaster"
)

const (
	Connection = "connection"
	Payload    = "payload"
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     Connection,
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "ID of the connection to push to",
		},
		&cli.StringFlag{
			Name:    Payload,
			Aliases: []string{"p"},
			Usage:   "Payload to push to the connection",
		},
	}

	flags = append(flags, wsmaster.ManagementFlags()...)

	app := &cli.App{
		Name:  "push",
		Usage: "Push a payload to a websocket connection via the management API",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			payload := ctx.String(Payload)
			if payload == "" {
				payload = "{}"
			}

			result, err := wsmaster.PushFromCLI(ctx, ctx.String(Connection), []byte(payload))
			if err != nil {
				return cli.Exit("failed to push to connection", 1)
			}

			return cli.Exit(string(result), 0)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
