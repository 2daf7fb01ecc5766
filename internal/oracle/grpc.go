package oracle

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

var tracer = otel.Tracer("reasoner.oracle")

// #region wire

// Service and method names of the oracle RPC. Messages are google.protobuf.Struct.
const (
	ServiceName = "reasoner.v1.Oracle"
	AskMethod   = "/" + ServiceName + "/Ask"
)

func encodeRequest(question string, t tensor.Semantic) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"question": question,
		"context":  tensorMap(t),
	})
}

func decodeRequest(s *structpb.Struct) (string, tensor.Semantic) {
	fields := s.GetFields()
	question := fields["question"].GetStringValue()
	return question, tensorFrom(fields["context"].GetStructValue())
}

func encodeAnswer(a Answer) (*structpb.Struct, error) {
	m := map[string]any{
		"text":         a.Text,
		"tensor_delta": tensorMap(a.TensorDelta),
	}
	if a.SuggestedPosition != nil {
		m["suggested_position"] = float64(*a.SuggestedPosition)
	}
	return structpb.NewStruct(m)
}

// decodeAnswer is lenient: missing channels decode as zero and a non-integral
// suggested position is dropped. Range checks happen downstream.
func decodeAnswer(s *structpb.Struct) Answer {
	fields := s.GetFields()
	a := Answer{
		Text:        fields["text"].GetStringValue(),
		TensorDelta: tensorFrom(fields["tensor_delta"].GetStructValue()),
	}
	if v, ok := fields["suggested_position"]; ok {
		if n, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
			f := n.NumberValue
			if f == math.Trunc(f) && !math.IsInf(f, 0) {
				p := position.Position(int(f))
				a.SuggestedPosition = &p
			}
		}
	}
	return a
}

func tensorMap(t tensor.Semantic) map[string]any {
	m := make(map[string]any, len(tensor.Channels))
	for _, ch := range tensor.Channels {
		m[ch.String()] = float64(t.Get(ch))
	}
	return m
}

func tensorFrom(s *structpb.Struct) tensor.Semantic {
	var t tensor.Semantic
	fields := s.GetFields()
	for _, ch := range tensor.Channels {
		t = t.With(ch, float32(fields[ch.String()].GetNumberValue()))
	}
	return t
}

// #endregion wire

// #region client

// GRPCClient asks a remote oracle over gRPC.
type GRPCClient struct {
	conn grpc.ClientConnInterface
	raw  *grpc.ClientConn
}

// NewGRPCClient connects to the oracle server at addr.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, raw: conn}, nil
}

// NewGRPCClientFromConn wraps an existing connection. Close is then the caller's job.
func NewGRPCClientFromConn(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// Close shuts down a connection opened by NewGRPCClient.
func (c *GRPCClient) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Ask sends one question. Transport failures and deadlines are ErrUnavailable.
func (c *GRPCClient) Ask(ctx context.Context, question string, contextTensor tensor.Semantic) (Answer, error) {
	ctx, span := tracer.Start(ctx, "oracle.Ask",
		trace.WithAttributes(attribute.Int("oracle.question_len", len(question))),
	)
	defer span.End()

	req, err := encodeRequest(question, contextTensor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, fmt.Errorf("encode ask request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, AskMethod, req, resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, fmt.Errorf("ask rpc: %w: %w", ErrUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return decodeAnswer(resp), nil
}

// #endregion client

// #region server

// RegisterServer exposes impl as the oracle service on s.
func RegisterServer(s grpc.ServiceRegistrar, impl Oracle) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Oracle)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ask", Handler: askHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func askHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		question, t := decodeRequest(req.(*structpb.Struct))
		a, err := srv.(Oracle).Ask(ctx, question, t)
		if err != nil {
			return nil, err
		}
		return encodeAnswer(a)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AskMethod}
	return interceptor(ctx, in, info, call)
}

// #endregion server
