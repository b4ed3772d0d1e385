package api

import (
	"encoding/base64"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

func getString(req *structpb.Struct, key string) string {
	v, ok := field(req, key)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// optString returns nil when key is absent.
func optString(req *structpb.Struct, key string) *string {
	v, ok := field(req, key)
	if !ok {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

func getBool(req *structpb.Struct, key string) bool {
	v, ok := field(req, key)
	return ok && v.GetBoolValue()
}

func optBool(req *structpb.Struct, key string) *bool {
	v, ok := field(req, key)
	if !ok {
		return nil
	}
	b := v.GetBoolValue()
	return &b
}

func getInt(req *structpb.Struct, key string) (int, error) {
	v, ok := field(req, key)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", key)
	}
	return int(n), nil
}

func getBytesList(req *structpb.Struct, key string) ([][]byte, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	vals := v.GetListValue().GetValues()
	out := make([][]byte, 0, len(vals))
	for i, item := range vals {
		b, err := base64.StdEncoding.DecodeString(item.GetStringValue())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d]: %v", key, i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func anyStrings(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func anyInts(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func reply(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return s, nil
}

// EncodeImages prepares raw files for a Capture request.
func EncodeImages(files [][]byte) []any {
	out := make([]any, len(files))
	for i, f := range files {
		out[i] = base64.StdEncoding.EncodeToString(f)
	}
	return out
}
