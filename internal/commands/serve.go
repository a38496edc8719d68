package commands

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-netreq/loader"
	"github.com/gaborage/go-netreq/server"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds options for the serve command
type ServeOptions struct {
	Config        ConfigOptions
	Address       string
	TLSAddress    string
	CertFile      string
	KeyFile       string
	SecureBaseURL string
	Documents     string
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fixture server",
		Long: `Starts the fixture server the access scenarios run against: a hello
page, a redirect from plain HTTP to HTTPS, an endless redirect loop and the
device bootstrap and recovery exchanges.

HTTPS is served as well when a certificate and key are given.`,
		Example: `  # Plain HTTP only
  netreq serve --address :8080

  # Plain HTTP and HTTPS, redirecting to the HTTPS origin
  netreq serve --tls-address :8443 --cert server.crt --key server.key \
    --secure-base-url https://fixture.example.com:8443`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	opts.Config.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Address, "address", "a", "", "Plain HTTP listen address (overrides server.address)")
	cmd.Flags().StringVar(&opts.TLSAddress, "tls-address", ":8443", "HTTPS listen address")
	cmd.Flags().StringVar(&opts.CertFile, "cert", "", "PEM certificate for HTTPS")
	cmd.Flags().StringVar(&opts.KeyFile, "key", "", "PEM private key for HTTPS")
	cmd.Flags().StringVar(&opts.SecureBaseURL, "secure-base-url", "", "HTTPS origin /RedirTest1 redirects to (overrides server.secure_base_url)")
	cmd.Flags().StringVarP(&opts.Documents, "documents", "d", "", "Directory documents missing from memory are read from")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if (opts.CertFile == "") != (opts.KeyFile == "") {
		return errors.New("--cert and --key must be given together")
	}

	cfg, log, err := opts.Config.load()
	if err != nil {
		return err
	}
	if opts.Address != "" {
		cfg.Server.Address = opts.Address
	}

	var serverOpts []server.Option
	if opts.Documents != "" {
		serverOpts = append(serverOpts, server.WithStore(server.NewMemoryStore(server.DefaultDocuments(), loader.NewDir(opts.Documents))))
	}
	if opts.SecureBaseURL != "" {
		serverOpts = append(serverOpts, server.WithSecureBaseURL(opts.SecureBaseURL))
	}
	srv := server.New(cfg, log, serverOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("fixture server failed: %w", err)
		}
		return nil
	})

	if opts.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			stop()
			_ = srv.Shutdown(context.Background())
			_ = g.Wait()
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		listener, err := net.Listen("tcp", opts.TLSAddress)
		if err != nil {
			stop()
			_ = srv.Shutdown(context.Background())
			_ = g.Wait()
			return fmt.Errorf("failed to listen on %s: %w", opts.TLSAddress, err)
		}
		g.Go(func() error {
			return srv.StartTLS(listener, cert)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down fixture server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
