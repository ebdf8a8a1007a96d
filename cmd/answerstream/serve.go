package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/answerstream/pkg/producer"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scripted development producer",
	Long: `Serves the canned answer stream on /chat_stream so the chat and ask
commands can be exercised without a real search backend.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		handler := producer.NewHandler(
			producer.WithFrameDelay(time.Duration(appCfg.FrameDelayMs) * time.Millisecond),
		)
		srv := &http.Server{Addr: serveAddr, Handler: handler}

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			log.Info().Str("component", "serve").Str("addr", serveAddr).Msg("producer listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		fmt.Fprintf(cmd.OutOrStdout(), "producer listening on %s\n", serveAddr)
		return eg.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address")
}
