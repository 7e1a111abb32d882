package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/garland-lang/garland/engine"
	"github.com/garland-lang/garland/resolver"
	"github.com/garland-lang/garland/store"
)

// ---------------------------------------------------------------------------
// InspectService
// ---------------------------------------------------------------------------

// InspectService answers queries over committed classes: digests by name or
// hash, metadata records by side, and the registry listing.
type InspectService struct {
	classes *engine.ClassTable
	digests *engine.DigestStore
}

// NewInspectService creates an InspectService.
func NewInspectService(classes *engine.ClassTable, digests *engine.DigestStore) *InspectService {
	return &InspectService{classes: classes, digests: digests}
}

// GetClass returns the digest for a class by name or content hash.
func (s *InspectService) GetClass(
	ctx context.Context,
	req *connect.Request[GetClassRequest],
) (*connect.Response[GetClassResponse], error) {
	if req.Msg.Hash != "" {
		raw, err := hex.DecodeString(req.Msg.Hash)
		if err != nil || len(raw) != 32 {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("malformed hash"))
		}
		var hash [32]byte
		copy(hash[:], raw)
		if d, ok := s.digests.GetByHash(hash); ok {
			return connect.NewResponse(&GetClassResponse{Digest: d}), nil
		}
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no class with hash %s", req.Msg.Hash))
	}
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name or hash is required"))
	}
	if d, ok := s.digests.GetByName(req.Msg.Name); ok {
		return connect.NewResponse(&GetClassResponse{Digest: d}), nil
	}
	return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no class named %q", req.Msg.Name))
}

// GetMetadata returns one side's metadata record for a committed class.
func (s *InspectService) GetMetadata(
	ctx context.Context,
	req *connect.Request[GetMetadataRequest],
) (*connect.Response[GetMetadataResponse], error) {
	cls := s.classes.Lookup(req.Msg.Name)
	if cls == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no class named %q", req.Msg.Name))
	}
	var record *engine.MetadataRecord
	switch req.Msg.Side {
	case "static":
		record = cls.StaticMetadata()
	case "instance":
		record = cls.InstanceMetadata()
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("side must be static or instance"))
	}
	wire := engine.MetadataWire(cls.FullName(), req.Msg.Side, record)
	return connect.NewResponse(&GetMetadataResponse{Metadata: wire}), nil
}

// ListClasses returns the sorted names of all committed classes.
func (s *InspectService) ListClasses(
	ctx context.Context,
	req *connect.Request[ListClassesRequest],
) (*connect.Response[ListClassesResponse], error) {
	return connect.NewResponse(&ListClassesResponse{Names: s.digests.Names()}), nil
}

// ---------------------------------------------------------------------------
// DefineService
// ---------------------------------------------------------------------------

// DefineService accepts class declarations, runs the definition pipeline,
// and registers the committed result.
type DefineService struct {
	classes *engine.ClassTable
	digests *engine.DigestStore
	rctx    *resolver.Context
	persist *store.Store // optional
}

// NewDefineService creates a DefineService. persist may be nil.
func NewDefineService(classes *engine.ClassTable, digests *engine.DigestStore, rctx *resolver.Context, persist *store.Store) *DefineService {
	return &DefineService{classes: classes, digests: digests, rctx: rctx, persist: persist}
}

// DefineClass builds and runs one class definition.
func (s *DefineService) DefineClass(
	ctx context.Context,
	req *connect.Request[DefineClassRequest],
) (*connect.Response[DefineClassResponse], error) {
	decl := req.Msg.Class
	if decl.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("class name is required"))
	}

	def, err := decl.Build(s.rctx, s.classes)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	cls, err := engine.Define(def, s.rctx)
	if err != nil {
		return nil, connect.NewError(defineCode(err), err)
	}
	if _, err := s.classes.Register(cls); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	digest := engine.DigestClass(cls)
	s.digests.Put(digest)
	log.Infof("defined class %s (%x)", cls.FullName(), digest.Hash[:8])

	if s.persist != nil {
		static := engine.MetadataWire(cls.FullName(), "static", cls.StaticMetadata())
		instance := engine.MetadataWire(cls.FullName(), "instance", cls.InstanceMetadata())
		if err := s.persist.SaveClass(digest, static, instance); err != nil {
			log.Errorf("persist class %s: %v", cls.FullName(), err)
		}
	}

	return connect.NewResponse(&DefineClassResponse{Digest: digest}), nil
}

// defineCode maps the engine's error taxonomy onto Connect codes.
func defineCode(err error) connect.Code {
	var resolution *engine.ResolutionError
	var shape *engine.ShapeViolation
	var duplicate *engine.DuplicateInitializationError
	var definition *engine.DefinitionError
	switch {
	case errors.As(err, &resolution), errors.As(err, &definition):
		return connect.CodeInvalidArgument
	case errors.As(err, &shape), errors.As(err, &duplicate):
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}
