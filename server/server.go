// Package server exposes the engine over Connect RPC: an inspection surface
// for committed class digests and metadata, and a definition surface that
// accepts declarations and runs the pipeline. Messages travel as CBOR.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/garland-lang/garland/engine"
	"github.com/garland-lang/garland/resolver"
	"github.com/garland-lang/garland/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("garland.server")

// Procedure paths.
const (
	GetClassProcedure    = "/garland.v1.InspectService/GetClass"
	GetMetadataProcedure = "/garland.v1.InspectService/GetMetadata"
	ListClassesProcedure = "/garland.v1.InspectService/ListClasses"
	DefineClassProcedure = "/garland.v1.DefineService/DefineClass"
)

// Server serves the inspection and definition services on one mux.
type Server struct {
	mux *http.ServeMux
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	persist *store.Store
}

// WithStore persists every committed definition into the given store.
func WithStore(persist *store.Store) ServerOption {
	return func(c *serverConfig) { c.persist = persist }
}

// New creates a Server over the given class registry, digest index, and
// resolution context.
func New(classes *engine.ClassTable, digests *engine.DigestStore, rctx *resolver.Context, opts ...ServerOption) (*Server, error) {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	codec, err := newCBORCodec()
	if err != nil {
		return nil, err
	}
	codecOpt := connect.WithCodec(codec)

	inspect := NewInspectService(classes, digests)
	define := NewDefineService(classes, digests, rctx, cfg.persist)

	mux := http.NewServeMux()
	mux.Handle(GetClassProcedure, connect.NewUnaryHandler(
		GetClassProcedure, inspect.GetClass, codecOpt,
	))
	mux.Handle(GetMetadataProcedure, connect.NewUnaryHandler(
		GetMetadataProcedure, inspect.GetMetadata, codecOpt,
	))
	mux.Handle(ListClassesProcedure, connect.NewUnaryHandler(
		ListClassesProcedure, inspect.ListClasses, codecOpt,
	))
	mux.Handle(DefineClassProcedure, connect.NewUnaryHandler(
		DefineClassProcedure, define.DefineClass, codecOpt,
	))

	return &Server{mux: mux}, nil
}

// Handler returns the HTTP handler serving all procedures.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the server on the given port. Blocks until the
// server stops.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Infof("listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

// Client calls the inspection and definition services.
type Client struct {
	getClass    *connect.Client[GetClassRequest, GetClassResponse]
	getMetadata *connect.Client[GetMetadataRequest, GetMetadataResponse]
	listClasses *connect.Client[ListClassesRequest, ListClassesResponse]
	defineClass *connect.Client[DefineClassRequest, DefineClassResponse]
}

// NewClient creates a Client against baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string) (*Client, error) {
	codec, err := newCBORCodec()
	if err != nil {
		return nil, err
	}
	codecOpt := connect.WithCodec(codec)
	return &Client{
		getClass: connect.NewClient[GetClassRequest, GetClassResponse](
			httpClient, baseURL+GetClassProcedure, codecOpt,
		),
		getMetadata: connect.NewClient[GetMetadataRequest, GetMetadataResponse](
			httpClient, baseURL+GetMetadataProcedure, codecOpt,
		),
		listClasses: connect.NewClient[ListClassesRequest, ListClassesResponse](
			httpClient, baseURL+ListClassesProcedure, codecOpt,
		),
		defineClass: connect.NewClient[DefineClassRequest, DefineClassResponse](
			httpClient, baseURL+DefineClassProcedure, codecOpt,
		),
	}, nil
}

// GetClass fetches a digest by name or hash.
func (c *Client) GetClass(ctx context.Context, req *GetClassRequest) (*GetClassResponse, error) {
	resp, err := c.getClass.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GetMetadata fetches one side's metadata record.
func (c *Client) GetMetadata(ctx context.Context, req *GetMetadataRequest) (*GetMetadataResponse, error) {
	resp, err := c.getMetadata.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ListClasses fetches the registry listing.
func (c *Client) ListClasses(ctx context.Context) (*ListClassesResponse, error) {
	resp, err := c.listClasses.CallUnary(ctx, connect.NewRequest(&ListClassesRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// DefineClass submits a declaration for definition.
func (c *Client) DefineClass(ctx context.Context, req *DefineClassRequest) (*DefineClassResponse, error) {
	resp, err := c.defineClass.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
