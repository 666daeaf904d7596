package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"carwash/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Feed streams stay open for as long as a dashboard runs, so idle
// connections are pinged rather than closed.
var (
	feedKeepalive = keepalive.ServerParameters{
		Time:    2 * time.Minute,
		Timeout: 20 * time.Second,
	}
	feedKeepalivePolicy = keepalive.EnforcementPolicy{
		MinTime:             30 * time.Second,
		PermitWithoutStream: true,
	}
)

const forcedStopAfter = 10 * time.Second

// GRPCServer serves the BookingFeed to other processes.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, feed BookingFeedServer, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := newGRPCServer(cfg, lis, feed, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

func newGRPCServer(cfg *config.APIConfig, lis net.Listener, feed BookingFeedServer, logger *zerolog.Logger) (*GRPCServer, error) {
	opts, err := feedServerOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(opts...)
	RegisterBookingFeedServer(server, feed)
	if cfg.GRPC.Reflection {
		reflection.Register(server)
	}

	return &GRPCServer{server: server, listener: lis, log: grpcLogger(logger)}, nil
}

func feedServerOptions(cfg *config.APIConfig, logger *zerolog.Logger) ([]grpc.ServerOption, error) {
	auth := NewAuthInterceptor(cfg)
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(LoggingUnaryInterceptor(logger), auth.Unary())),
		grpc.StreamInterceptor(ChainStreamInterceptors(LoggingStreamInterceptor(logger), auth.Stream())),
		grpc.KeepaliveParams(feedKeepalive),
		grpc.KeepaliveEnforcementPolicy(feedKeepalivePolicy),
	}

	if !cfg.GRPC.TLS.Enabled {
		return opts, nil
	}
	tlsCfg, err := serverTLS(cfg.GRPC.TLS)
	if err != nil {
		return nil, err
	}
	return append(opts, grpc.Creds(credentials.NewTLS(tlsCfg))), nil
}

func serverTLS(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: load keypair: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return tlsCfg, nil
	}

	pool, err := clientCAPool(cfg.ClientCAFile)
	if err != nil {
		return nil, err
	}
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	tlsCfg.ClientCAs = pool
	return tlsCfg, nil
}

func clientCAPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, errors.New("grpc tls: client_ca_file is required with require_client_cert")
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: read client_ca_file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("grpc tls: no certificates in %s", path)
	}
	return pool, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("booking feed listening")
	return s.server.Serve(s.listener)
}

// Shutdown waits for open streams until ctx ends or forcedStopAfter passes.
// Watchers never hang up on their own, so the forced stop is the usual path.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, forcedStopAfter)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("booking feed did not drain, closing streams")
		s.server.Stop()
	}
}
