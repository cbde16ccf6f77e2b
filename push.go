package wsmaster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/urfave/cli/v2"
)

const (
	ManagementEndpointName   = "mgmt-endpoint"
	PushEndpointName         = "push-endpoint"
	StageName                = "stage"
	EnvVarManagementEndpoint = "WSMASTER_MGMT_ENDPOINT"
	EnvVarPushEndpoint       = "WSMASTER_PUSH_ENDPOINT"
	EnvVarStage              = "WSMASTER_STAGE"
)

// Push posts a payload to a connection through the management API and
// returns the response body.
func Push(ctx context.Context, pushEndpoint string, payload []byte) ([]byte, error) {
	httpClient := cleanhttp.DefaultClient()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		pushEndpoint,
		io.NopCloser(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to push to connection: %w", err)
	}

	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("connection is gone: %s", pushEndpoint)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("push rejected with status %d", resp.StatusCode)
	}

	return buf.Bytes(), nil
}

// PushEndpointForConnection builds the management API URL that addresses one
// connection.
func PushEndpointForConnection(base, stage, connectionID string) string {
	base = strings.TrimSuffix(base, "/")
	stage = strings.TrimSuffix(strings.TrimPrefix(stage, "/"), "/")
	return fmt.Sprintf("%s/%s/@connections/%s", base, stage, connectionID)
}

// PushFromCLI resolves the push endpoint from CLI flags and posts the
// payload to the given connection.
func PushFromCLI(cliCtx *cli.Context, connectionID string, payload []byte) ([]byte, error) {
	pushEndpoint := cliCtx.String(PushEndpointName)
	if pushEndpoint == "" {
		pushEndpoint = PushEndpointForConnection(
			cliCtx.String(ManagementEndpointName),
			cliCtx.String(StageName),
			connectionID,
		)
	}

	return Push(cliCtx.Context, pushEndpoint, payload)
}

// ManagementFlags are the CLI flags shared by every command that talks to
// the management API.
func ManagementFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    ManagementEndpointName,
			EnvVars: []string{EnvVarManagementEndpoint},
			Value:   "http://localhost:8081",
			Usage:   "Base endpoint of the management API. i.e. http://localhost:8081",
		},
		&cli.StringFlag{
			Name:    StageName,
			EnvVars: []string{EnvVarStage},
			Value:   "/ws",
			Usage:   "Stage path the websocket server is mounted on",
		},
		&cli.StringFlag{
			Name:    PushEndpointName,
			EnvVars: []string{EnvVarPushEndpoint},
			Usage: "Full endpoint for pushing to a connection, overriding the base endpoint. " +
				"i.e. http://localhost:8081/ws/@connections/abc123",
		},
	}
}
