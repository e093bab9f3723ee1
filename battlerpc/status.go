// Package battlerpc exposes the battle facade as a gRPC service, shaping
// battleerr codes into google.golang.org/grpc/status errors carrying a
// google.rpc.ErrorInfo detail, mirroring the teacher's
// internal/services/listing/app pattern of a thin Server wrapping a storage
// layer's domain errors. No .proto file is compiled here: request/response
// payloads are google.protobuf.Struct, which ships already-generated with
// google.golang.org/protobuf, so adding an RPC never requires protoc.
package battlerpc

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/battlecore/battleerr"
)

// Domain is the ErrorInfo.Domain attached to every translated status.
const Domain = "battlecore.louisbranch.github.com"

// codeTable maps the engine's error taxonomy to the nearest gRPC status
// code. CodeScriptError maps to Internal: a script failure is swallowed by
// the engine itself (the turn continues as a no-op), so surfacing it over
// RPC at all only happens if a caller explicitly asks for diagnostics.
var codeTable = map[battleerr.Code]codes.Code{
	battleerr.CodeValidation:        codes.InvalidArgument,
	battleerr.CodeInvalidChoice:     codes.FailedPrecondition,
	battleerr.CodeNotFound:          codes.NotFound,
	battleerr.CodeScriptError:       codes.Internal,
	battleerr.CodeInternalInvariant: codes.Internal,
}

// ToStatus translates err into a gRPC status. Non-battleerr errors become
// codes.Unknown with no error detail attached.
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	var berr *battleerr.Error
	var ok bool
	if berr, ok = asBattleErr(err); !ok {
		return status.New(codes.Unknown, err.Error())
	}
	code, known := codeTable[berr.Code]
	if !known {
		code = codes.Unknown
	}
	st := status.New(code, berr.Error())
	info := &errdetails.ErrorInfo{
		Reason: string(berr.Code),
		Domain: Domain,
		Metadata: berr.Metadata,
	}
	withDetail, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st
	}
	return withDetail
}

func asBattleErr(err error) (*battleerr.Error, bool) {
	berr, ok := err.(*battleerr.Error)
	return berr, ok
}
