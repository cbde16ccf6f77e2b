package main

import (
	"bytes"
	"fmt"
	"go/format"
	"log"
	"os"
	"strings"
	"text/template"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	RouteName   = "route"
	EventName   = "event"
	PackageName = "package"
	OutputName  = "out"
)

const handlerTemplate = `package {{.Package}}

import (
	"github.com/wsmaster/wsmaster/wshub"
)

// Register{{.RouteIdent}}Route registers the {{.Route}} route and its event
// handlers on the router.
func Register{{.RouteIdent}}Route(router *wshub.Router) {
	router.Route({{printf "%q" .Route}}){{range .Events}}.
		Handle({{printf "%q" .Name}}, {{.Ident}}){{end}}
}
{{range .Events}}
// {{.Ident}} handles the {{.Name}} event on the {{$.Route}} route.
func {{.Ident}}(ctx *wshub.Context) error {
	// TODO: implement the {{.Name}} event
	return ctx.Reply(nil)
}
{{end}}`

type eventStub struct {
	Name  string
	Ident string
}

type templateData struct {
	Package    string
	Route      string
	RouteIdent string
	Events     []eventStub
}

// identifier converts a route or event name into an exported Go identifier:
// "user-profile" becomes "UserProfile".
func identifier(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			if upper {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upper = false
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	return b.String()
}

func build(pkg, route string, events []string) ([]byte, error) {
	data := templateData{
		Package:    pkg,
		Route:      route,
		RouteIdent: identifier(route),
	}
	for _, event := range events {
		data.Events = append(data.Events, eventStub{
			Name:  event,
			Ident: "handle" + data.RouteIdent + identifier(event),
		})
	}

	tmpl, err := template.New("handler").Parse(handlerTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse handler template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render handler template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated source: %w", err)
	}

	return src, nil
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     RouteName,
			Aliases:  []string{"r"},
			Required: true,
			Usage:    "Route name to scaffold handlers for",
		},
		&cli.StringSliceFlag{
			Name:    EventName,
			Aliases: []string{"e"},
			Value:   cli.NewStringSlice("ping"),
			Usage:   "Event names to generate handler stubs for",
		},
		&cli.StringFlag{
			Name:    PackageName,
			Value:   "handlers",
			Usage:   "Package name for the generated file",
		},
		&cli.StringFlag{
			Name:    OutputName,
			Aliases: []string{"o"},
			Usage:   "Output file. Defaults to <route>_handlers.go; use - for stdout",
		},
	}

	app := &cli.App{
		Name:  "builder",
		Usage: "Generate route handler boilerplate for a wsmaster server",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			route := ctx.String(RouteName)
			src, err := build(ctx.String(PackageName), route, ctx.StringSlice(EventName))
			if err != nil {
				return err
			}

			out := ctx.String(OutputName)
			if out == "-" {
				_, err := os.Stdout.Write(src)
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s_handlers.go", strings.ReplaceAll(route, "-", "_"))
			}

			if err := os.WriteFile(out, src, 0o644); err != nil {
				return fmt.Errorf("failed to write generated file: %w", err)
			}

			zap.L().Info("generated handler file",
				zap.String("route", route),
				zap.String("file", out),
			)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
