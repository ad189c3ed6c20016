package httpx

import (
	"context"
	"crypto/tls"
	"net/http"

	"tradepost/pkg/logger"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Engine names for the HTTP front.
const (
	EngineNetHTTP  = "nethttp"
	EngineFastHTTP = "fasthttp"
)

// Server wraps either a net/http or a fasthttp server behind one lifecycle.
type Server struct {
	engine string
	std    *http.Server
	fast   *fasthttp.Server
	addr   string
}

// NewServer builds a server for the requested engine serving handler on
// addr. Unknown engine names fall back to net/http.
func NewServer(engine, addr string, handler http.Handler) *Server {
	s := &Server{engine: engine, addr: addr}
	switch engine {
	case EngineFastHTTP:
		s.fast = &fasthttp.Server{
			Handler: fasthttpadaptor.NewFastHTTPHandler(handler),
			Name:    "tradepost",
		}
	default:
		s.engine = EngineNetHTTP
		s.std = &http.Server{Addr: addr, Handler: handler}
	}
	return s
}

// ListenAndServe blocks serving requests. TLS is used when both cert and
// key paths are non-empty.
func (s *Server) ListenAndServe(certFile, keyFile string) error {
	logger.Info("http_listen", "engine", s.engine, "addr", s.addr, "tls", certFile != "" && keyFile != "")
	if s.fast != nil {
		if certFile != "" && keyFile != "" {
			return s.fast.ListenAndServeTLS(s.addr, certFile, keyFile)
		}
		return s.fast.ListenAndServe(s.addr)
	}
	if certFile != "" && keyFile != "" {
		return s.std.ListenAndServeTLS(certFile, keyFile)
	}
	return s.std.ListenAndServe()
}

// Shutdown gracefully stops the server, honoring ctx's deadline for the
// net/http engine.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.fast != nil {
		return s.fast.Shutdown()
	}
	return s.std.Shutdown(ctx)
}

// TLSConfigured reports whether the config pair names usable TLS material.
func TLSConfigured(certFile, keyFile string) bool {
	if certFile == "" || keyFile == "" {
		return false
	}
	_, err := tls.LoadX509KeyPair(certFile, keyFile)
	return err == nil
}
