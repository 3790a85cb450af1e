// internal/cli/services.go
package cli

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	app "storefront/internal"
	"storefront/internal/channel"
	"storefront/internal/config"
	"storefront/internal/util"
)

var ingressCmd = &cobra.Command{
	Use:   "ingress",
	Short: "Run the public purchase API",
	RunE:  runIngress,
}

var fulfillmentCmd = &cobra.Command{
	Use:   "fulfillment",
	Short: "Run the settlement worker and the Query Service",
	RunE:  runFulfillment,
}

var standaloneCmd = &cobra.Command{
	Use:   "standalone",
	Short: "Run ingress and fulfillment in one process over an in-memory channel",
	RunE:  runStandalone,
}

func init() {
	standaloneCmd.Flags().Int("partitions", 4, "Partitions of the in-memory purchase topic")
	standaloneCmd.Flags().Int("query-port", 8081, "Port of the Query Service")
}

func runIngress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Create and initialize the application
	application := app.NewIngressApplication()
	if err := application.Initialize(ctx); err != nil {
		util.GetLogger().Error("Failed to initialize application", "error", err)
		return err
	}
	application.Start(ctx)

	server := newHTTPServer(application.Config.ServerPort, application.HTTPHandler)
	return serveUntilSignal(application.Logger, []*http.Server{server}, application.Shutdown)
}

func runFulfillment(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application := app.NewFulfillmentApplication()
	if err := application.Initialize(ctx); err != nil {
		util.GetLogger().Error("Failed to initialize application", "error", err)
		return err
	}
	application.Start(ctx)

	server := newHTTPServer(application.Config.ServerPort, application.HTTPHandler)
	return serveUntilSignal(application.Logger, []*http.Server{server}, application.Shutdown)
}

func runStandalone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	partitions, _ := cmd.Flags().GetInt("partitions")
	queryPort, _ := cmd.Flags().GetInt("query-port")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if strconv.Itoa(queryPort) == cfg.ServerPort {
		return fmt.Errorf("query-port %d collides with SERVER_PORT", queryPort)
	}
	util.InitLogger(cfg.Log.Level)
	log := channel.NewMemoryLog(cfg.Channel.Topic, partitions)

	fulfillmentCfg := *cfg
	fulfillmentCfg.ServerPort = strconv.Itoa(queryPort)
	fulfillment := app.NewFulfillmentApplication()
	fulfillment.Config = &fulfillmentCfg
	fulfillment.Consumer = log.Consumer(cfg.Channel.GroupID, util.GetLogger())
	if err := fulfillment.Initialize(ctx); err != nil {
		util.GetLogger().Error("Failed to initialize fulfillment", "error", err)
		return err
	}

	ingressCfg := *cfg
	ingressCfg.Query.BaseURL = fmt.Sprintf("http://localhost:%d", queryPort)
	ingress := app.NewIngressApplication()
	ingress.Config = &ingressCfg
	ingress.Producer = log
	if err := ingress.Initialize(ctx); err != nil {
		util.GetLogger().Error("Failed to initialize ingress", "error", err)
		_ = fulfillment.Shutdown(ctx)
		return err
	}

	fulfillment.Start(ctx)
	ingress.Start(ctx)

	servers := []*http.Server{
		newHTTPServer(ingressCfg.ServerPort, ingress.HTTPHandler),
		newHTTPServer(fulfillmentCfg.ServerPort, fulfillment.HTTPHandler),
	}
	// Ingress first: closing its producer closes the shared log.
	return serveUntilSignal(ingress.Logger, servers, ingress.Shutdown, fulfillment.Shutdown)
}
