package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeUntilSignalStopsWhenAServerFails(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	port := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	var shutdowns []string
	err = serveUntilSignal(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		[]*http.Server{newHTTPServer(port, http.NotFoundHandler())},
		func(context.Context) error { shutdowns = append(shutdowns, "ingress"); return nil },
		func(context.Context) error { shutdowns = append(shutdowns, "fulfillment"); return nil },
	)

	assert.Error(t, err)
	assert.Equal(t, []string{"ingress", "fulfillment"}, shutdowns)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	if versionCmd.Parent() == nil {
		rootCmd.AddCommand(versionCmd)
	}
	rootCmd.Version = "1.2.3"
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "storefront 1.2.3")
}
