package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	wsmaster "github.com/wsmaster/wsmaster"
	"github.com/wsmaster/wsmaster/wshub"
)

const (
	WebsocketAPIPort  = "websocket-api-port"
	WebsocketAPIStage = "websocket-api-stage"
	ManagementAPIPort = "mgmt-api-port"
	Echo              = "echo"
	FlushTimeout      = "flush-timeout"
	QueueSize         = "queue-size"
)

var (
	logger *zap.Logger
)

func init() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
}

type roomRequest struct {
	Room string `json:"room"`
	Text string `json:"text,omitempty"`
}

// newRouter wires the built-in routes: an echo route for connectivity
// checks and a rooms route for group membership and scoped broadcast.
func newRouter() *wshub.Router {
	router := wshub.NewRouter()

	router.Route("echo").
		Handle("ping", func(ctx *wshub.Context) error {
			return ctx.Reply(map[string]string{"data": "Pong"})
		})

	rooms := router.Route("rooms")
	rooms.Handle("join", func(ctx *wshub.Context) error {
		var req roomRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		ctx.Join(req.Room)
		return ctx.Reply(map[string]string{"room": req.Room, "status": "joined"})
	})
	rooms.Handle("leave", func(ctx *wshub.Context) error {
		var req roomRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		ctx.Leave(req.Room)
		return ctx.Reply(map[string]string{"room": req.Room, "status": "left"})
	})
	rooms.Handle("say", func(ctx *wshub.Context) error {
		var req roomRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return ctx.Broadcast(req.Room, map[string]string{
			"room":   req.Room,
			"sender": ctx.ConnectionID(),
			"text":   req.Text,
		})
	})

	return router
}

func registerManagementRoutes(router *mux.Router, stage string, hub *wshub.Hub) {
	router.HandleFunc(
		fmt.Sprintf("/%s/@connections/{connectionID}", stage),
		func(w http.ResponseWriter, r *http.Request) {
			params := mux.Vars(r)
			connectionID := params["connectionID"]

			zap.L().Info("received push for websocket from management API",
				zap.String("connection.id", connectionID),
			)

			bodyData, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			if err := hub.Send(connectionID, bodyData); err != nil {
				w.WriteHeader(http.StatusGone)
				return
			}
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodPost)

	router.HandleFunc(
		fmt.Sprintf("/%s/@connections/{connectionID}", stage),
		func(w http.ResponseWriter, r *http.Request) {
			params := mux.Vars(r)
			connectionID := params["connectionID"]

			zap.L().Info("received disconnect from management API",
				zap.String("connection.id", connectionID),
			)

			if err := hub.Close(connectionID); err != nil {
				w.WriteHeader(http.StatusGone)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}).Methods(http.MethodDelete)

	router.HandleFunc(
		fmt.Sprintf("/%s/@connections", stage),
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(hub.Connections())
		}).Methods(http.MethodGet)

	router.HandleFunc(
		fmt.Sprintf("/%s/groups/{group}", stage),
		func(w http.ResponseWriter, r *http.Request) {
			params := mux.Vars(r)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(hub.Members(params["group"]))
		}).Methods(http.MethodGet)
}

func main() {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    WebsocketAPIPort,
			EnvVars: []string{"WEBSOCKET_API_PORT"},
			Value:   8080,
			Usage:   "Port to listen on for websocket connections",
		},
		&cli.StringFlag{
			Name:    WebsocketAPIStage,
			EnvVars: []string{"WEBSOCKET_API_STAGE"},
			Value:   "/ws",
			Usage:   "Stage path to mount the websocket endpoint on",
		},
		&cli.IntFlag{
			Name:    ManagementAPIPort,
			EnvVars: []string{"MANAGEMENT_API_PORT"},
			Value:   8081,
			Usage:   "Port to listen on for management API requests",
		},
		&cli.BoolFlag{
			Name:    Echo,
			EnvVars: []string{"WSMASTER_ECHO"},
			Usage:   "Include the sender in group broadcasts",
		},
		&cli.DurationFlag{
			Name:    FlushTimeout,
			EnvVars: []string{"WSMASTER_FLUSH_TIMEOUT"},
			Value:   5 * time.Second,
			Usage:   "How long a closing connection may spend flushing queued messages",
		},
		&cli.IntFlag{
			Name:    QueueSize,
			EnvVars: []string{"WSMASTER_QUEUE_SIZE"},
			Value:   256,
			Usage:   "Per-connection send queue capacity",
		},
	}

	app := &cli.App{
		Name:  "wsmaster-server",
		Usage: "Websocket server with a registry, rooms, and a management API",
		Flags: flags,
		Action: func(cliCtx *cli.Context) error {
			//nolint:errcheck
			defer logger.Sync()

			zap.L().Info("initializing wsmaster server",
				zap.String("websocket.api.stage", cliCtx.String(WebsocketAPIStage)),
				zap.Int("websocket.api.port", cliCtx.Int(WebsocketAPIPort)),
				zap.Int("management.api.port", cliCtx.Int(ManagementAPIPort)),
				zap.Bool("echo", cliCtx.Bool(Echo)),
				zap.Duration("flush.timeout", cliCtx.Duration(FlushTimeout)),
			)

			hub := wshub.NewHub(newRouter(),
				wshub.WithEcho(cliCtx.Bool(Echo)),
				wshub.WithFlushTimeout(cliCtx.Duration(FlushTimeout)),
				wshub.WithQueueSize(cliCtx.Int(QueueSize)),
			)
			ctx := wsmaster.TrapProcess()

			go hub.Run(ctx)
			hub.RegisterListener(&wshub.Listener{
				ID: "connection-log",
				OnConnect: func(conn *wshub.Connection) {
					zap.L().Info("connection registered",
						zap.String("connection.id", conn.ID),
						zap.Time("connection.connected_at", conn.ConnectedAt),
					)
				},
				OnDisconnect: func(conn *wshub.Connection) {
					zap.L().Info("connection unregistered",
						zap.String("connection.id", conn.ID),
					)
				},
			})

			stage := strings.TrimPrefix(cliCtx.String(WebsocketAPIStage), "/")
			mgmtRouter := mux.NewRouter()
			registerManagementRoutes(mgmtRouter, stage, hub)

			mgmtServer := http.Server{
				Addr:              fmt.Sprintf(":%d", cliCtx.Int(ManagementAPIPort)),
				Handler:           mgmtRouter,
				ReadHeaderTimeout: time.Second * 1,
			}

			wsRouter := mux.NewRouter()
			wsRouter.HandleFunc(fmt.Sprintf("/%s", stage), hub.ServeRequest)
			wsServer := http.Server{
				Addr:              fmt.Sprintf(":%d", cliCtx.Int(WebsocketAPIPort)),
				Handler:           wsRouter,
				ReadHeaderTimeout: time.Second * 1,
			}

			serverErr := make(chan error, 1)
			go func() {
				zap.L().Info("starting management server", zap.Int("port", cliCtx.Int(ManagementAPIPort)))
				err := mgmtServer.ListenAndServe()
				if !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("failed to serve management API", zap.Error(err))
					serverErr <- err
				}
			}()

			go func() {
				zap.L().Info("starting websocket server", zap.Int("port", cliCtx.Int(WebsocketAPIPort)))
				err := wsServer.ListenAndServe()
				if !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("failed to serve websockets", zap.Error(err))
					serverErr <- err
				}
			}()

			defer func() {
				_ = wsServer.Shutdown(context.Background())
				_ = mgmtServer.Shutdown(context.Background())
			}()

			select {
			case err := <-serverErr:
				return err
			case <-ctx.Done():
				zap.L().Info("shutting down servers")
				return nil
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
