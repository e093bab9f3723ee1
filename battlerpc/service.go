package battlerpc

import (
	"context"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/battlecore/battle"
	"github.com/louisbranch/battlecore/catalog"
)

// ServiceName is the gRPC service name battlerpc registers under.
const ServiceName = "battlecore.v1.BattleService"

// Service exposes a registry of in-memory battle.Battle instances over
// gRPC. One Service serves every battle created against a single shared,
// read-only catalog.Store (spec §5's shared-resource policy).
type Service struct {
	store *catalog.Store

	mu      sync.Mutex
	battles map[battle.ID]*battle.Battle

	nextSeq atomic.Uint64
}

// NewService builds a Service backed by store.
func NewService(store *catalog.Store) *Service {
	return &Service{store: store, battles: map[battle.ID]*battle.Battle{}}
}

// CreateBattle creates a battle from a request Struct shaped like
// {"format": string, "sides": [{"name": string, "players": [string]}]} and
// returns {"battleId": string}.
func (s *Service) CreateBattle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	format := fields["format"].GetStringValue()

	var sides []battle.SideSetup
	for _, sv := range fields["sides"].GetListValue().GetValues() {
		sideFields := sv.GetStructValue().GetFields()
		var players []string
		for _, pv := range sideFields["players"].GetListValue().GetValues() {
			players = append(players, pv.GetStringValue())
		}
		sides = append(sides, battle.SideSetup{Name: sideFields["name"].GetStringValue(), Players: players})
	}

	options := battle.Options{BattleType: battle.TypeSingles, Format: format, Sides: sides}
	b, err := battle.Create(s.store, options, battle.DefaultEngineOptions())
	if err != nil {
		return nil, ToStatus(err).Err()
	}

	s.mu.Lock()
	s.battles[b.ID()] = b
	s.mu.Unlock()

	return structpb.NewStruct(map[string]any{"battleId": string(b.ID())})
}

// MakeChoice submits one player's choice for a battle named by request
// field "battleId"/"player"/"choice" and returns {"ok": true}.
func (s *Service) MakeChoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	b, err := s.lookup(fields["battleId"].GetStringValue())
	if err != nil {
		return nil, err
	}
	player := int(fields["player"].GetNumberValue())
	choice := fields["choice"].GetStringValue()
	if err := b.MakeChoice(player, choice); err != nil {
		return nil, ToStatus(err).Err()
	}
	return structpb.NewStruct(map[string]any{"ok": true})
}

// GetStatus returns a battle's PublicStatus as
// {"state": int, "turn": int, "sides": int, "players": int}.
func (s *Service) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	b, err := s.lookup(fields["battleId"].GetStringValue())
	if err != nil {
		return nil, err
	}
	status := b.PublicStatus()
	return structpb.NewStruct(map[string]any{
		"state":   float64(status.State),
		"turn":    float64(status.Turn),
		"sides":   float64(status.Sides),
		"players": float64(status.Players),
	})
}

func (s *Service) lookup(battleID string) (*battle.Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.battles[battle.ID(battleID)]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "battle %q not found", battleID)
	}
	return b, nil
}

// ServiceDesc is the hand-written grpc.ServiceDesc battlerpc registers on a
// *grpc.Server. There is no .proto source: every method's wire type is
// google.protobuf.Struct, so the descriptor is authored directly rather
// than generated, following grpc.ServiceDesc's documented shape.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBattle", Handler: unaryHandler((*Service).CreateBattle)},
		{MethodName: "MakeChoice", Handler: unaryHandler((*Service).MakeChoice)},
		{MethodName: "GetStatus", Handler: unaryHandler((*Service).GetStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "battlerpc/service.go",
}

// Register attaches svc to grpcServer under ServiceDesc.
func Register(grpcServer *grpc.Server, svc *Service) {
	grpcServer.RegisterService(&ServiceDesc, svc)
}

// unaryHandler adapts one of Service's (ctx, *structpb.Struct) methods into
// the grpc.methodHandler shape grpc.MethodDesc expects.
func unaryHandler(method func(*Service, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*Service)
		if interceptor == nil {
			return method(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/" + ServiceName}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
