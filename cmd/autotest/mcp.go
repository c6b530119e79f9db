package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/deixis/autotest/internal/config"
	atmcp "github.com/deixis/autotest/internal/mcp"
	"github.com/deixis/autotest/internal/report"
	"github.com/deixis/autotest/internal/runner"
)

func mcpMain(c *cli.Context) error {
	if c.Bool(InstructionsFlag.Name) {
		fmt.Fprint(c.App.Writer, atmcp.Instructions)
		return nil
	}

	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	return serve(c.Context, loaded, c.String(HTTPFlag.Name))
}

func serve(ctx context.Context, loaded *config.LoadResult, httpAddr string) error {
	cfg := loaded.Config

	var back report.Store = report.NewDiskStore()
	if disk := reportStore(loaded); disk != nil {
		back = disk
	}
	store := report.NewLRUStore(5, back)

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := atmcp.NewServer(cfg, r, store, loaded.Root)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
