package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/cmd/util"
	"github.com/mpapenbr/gforce-sculpture/pkg/config"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the viewer backend",
		Long: `Starts an HTTP server holding the current scene. Browsers submit jobs,
pick samples and receive progress updates as server-sent events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ViewerAddr,
		"addr",
		"a",
		"localhost:8090",
		"viewer listen address")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"path to TLS certificate, enables https")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"path to TLS key")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"path to traefik ACME storage file")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-domain",
		"",
		"domain to lookup within the traefik certs")
	return cmd
}

//nolint:funlen // by design
func startServer(parent context.Context) error {
	if err := util.SetupLogger(); err != nil {
		return err
	}
	ctx, stop := util.SignalContext(parent)
	defer stop()

	env, err := util.NewEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.WaitForServices(ctx); err != nil {
		return err
	}
	env.CheckVersion(ctx)

	v := newViewer(func(
		ctx context.Context,
		req model.JobRequest,
		onView func(progress.View),
	) (*model.JobResult, error) {
		env.WarnIfUnhealthy(ctx)
		return env.RunJob(ctx, req, util.RunOptions{
			Relay:  config.NatsRelay,
			OnView: onView,
		})
	})
	defer v.close()

	//nolint:gosec // by design
	server := &http.Server{
		Addr:    config.ViewerAddr,
		Handler: h2c.NewHandler(newCORS().Handler(v.routes()), &http2.Server{}),
	}
	tlsConfig, err := newTLSConfig(ctx, sourceFromConfig())
	if err != nil {
		return err
	}
	server.TLSConfig = tlsConfig
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting viewer backend",
			log.String("addr", config.ViewerAddr),
			log.Bool("tls", tlsConfig != nil))
		if tlsConfig != nil {
			errCh <- server.ListenAndServeTLS("", "")
			return
		}
		errCh <- server.ListenAndServe()
	}()
	setupGoRoutinesDump()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			return err
		}
	case <-ctx.Done():
		log.Debug("shutting down viewer backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", log.ErrorField(err))
		}
	}
	log.Info("Server terminated")
	return nil
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	// browsers running the viewer may be served from any origin
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
