// Command mcp-server runs a minimal MCP server exposing a handful of demo
// tools, resources and prompts over either stdio or the Streamable HTTP
// transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localrivet/gomcp/internal/config"
	"github.com/localrivet/gomcp/internal/logx"
	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/server"
	"github.com/localrivet/gomcp/transport/httpstream"
	"github.com/localrivet/gomcp/transport/stdio"
	"github.com/localrivet/gomcp/util/response"
	"github.com/localrivet/gomcp/util/tool"
)

const cfgShutdownTimeout = 5 * time.Second

func main() {
	var (
		transportFlag = flag.String("transport", "stdio", "transport to serve on: stdio or http")
		addrFlag      = flag.String("addr", "", "listen address for the http transport (overrides config file)")
		configPath    = flag.String("config", "", "path to a YAML config file (optional)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addrFlag != "" {
		cfg.Server.ListenAddr = *addrFlag
	}

	logger := logx.NewDefault()
	logger.SetLevel(cfg.Logging.Level)

	srv := server.New(cfg.Server.Name,
		server.WithVersion(cfg.Server.Version),
		server.WithInstructions(cfg.Server.Instructions),
		server.WithLogger(logger),
		server.WithCapabilities(cfg.Server.Capabilities.ToServerCapabilities()),
	)

	registerDemoFeatures(srv)

	switch *transportFlag {
	case "stdio":
		runStdio(srv, logger)
	case "http":
		runHTTP(srv, logger, cfg.Server.ListenAddr, cfg.Server.DNSRebindingProtection)
	default:
		fmt.Fprintf(os.Stderr, "unknown transport %q (want stdio or http)\n", *transportFlag)
		os.Exit(1)
	}
}

func runStdio(srv *server.Server, logger logx.Logger) {
	t := stdio.New(logger)
	srv.NewSession(t)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	_ = t.Close()
}

func runHTTP(srv *server.Server, logger logx.Logger, addr string, rebinding config.DNSRebindingConfig) {
	var opts []httpstream.HandlerOption
	if rebinding.Enabled {
		opts = append(opts, httpstream.WithDNSRebindingProtection(rebinding.AllowedHosts, rebinding.AllowedOrigins))
	}
	handler := httpstream.NewHandler(srv, logger, opts...)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	go func() {
		logger.Info("http transport listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfgShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

type echoArgs struct {
	Message string `json:"message"`
}

func registerDemoFeatures(srv *server.Server) {
	echoTool, echoHandler := tool.New("echo", "Echoes the given message back to the caller.",
		func(ctx *server.Context, args *echoArgs) (*protocol.CallToolResult, error) {
			if args.Message == "" {
				return response.Error("message must not be empty"), nil
			}
			return response.Text(args.Message), nil
		})
	srv.RegisterTool(echoTool, echoHandler)

	srv.RegisterResource(protocol.Resource{
		URI:      "demo:///readme",
		Name:     "readme",
		MimeType: "text/plain",
	}, func(ctx *server.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
		return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{
			{URI: uri, MimeType: "text/plain", Text: "This is a demo MCP server."},
		}}, nil
	})

	err := srv.RegisterResourceTemplate("demo:///greetings/{name}", protocol.ResourceTemplate{
		URITemplate: "demo:///greetings/{name}",
		Name:        "greeting",
		MimeType:    "text/plain",
	}, func(ctx *server.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
		return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{
			{URI: uri, MimeType: "text/plain", Text: "Hello, " + vars["name"] + "!"},
		}}, nil
	})
	if err != nil {
		panic("mcp-server: registering demo resource template: " + err.Error())
	}

	srv.RegisterPrompt(protocol.Prompt{
		Name:        "greeting",
		Description: "Produces a friendly greeting prompt for the given name.",
		Arguments:   []protocol.PromptArgument{{Name: "name", Required: true}},
	}, func(ctx *server.Context, args map[string]string) (*protocol.GetPromptResult, error) {
		return &protocol.GetPromptResult{
			Messages: []protocol.PromptMessage{
				{Role: "user", Content: protocol.NewTextContent("Say hello to " + args["name"] + ".")},
			},
		}, nil
	})
}
