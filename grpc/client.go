package grpc

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/tsne"
)

// Client calls a remote embedding service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Response is a decoded RunEmbedding reply.
type Response struct {
	Result     map[string]any
	RunID      string
	DurationMS int64
}

// RunEmbedding sends args and returns the result dictionary. Remote argument
// and computation failures come back marked tsne.ErrArgumentType and
// tsne.ErrNativeComputation with the server's message.
func (c *Client) RunEmbedding(ctx context.Context, args map[string]any, opts ...grpc.CallOption) (*Response, error) {
	in, err := structpb.NewStruct(structArgs(args))
	if err != nil {
		return nil, tsne.NewArgumentTypeError(tsne.ArgMatrix, "cannot encode arguments: %v", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, RunEmbeddingMethod, in, out, opts...); err != nil {
		return nil, fromStatus(err)
	}

	fields := out.GetFields()
	return &Response{
		Result:     fields[FieldResult].GetStructValue().AsMap(),
		RunID:      fields[FieldRunID].GetStringValue(),
		DurationMS: int64(fields[FieldDurationMS].GetNumberValue()),
	}, nil
}

// structArgs converts matrix values into the nested lists structpb accepts.
func structArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch m := v.(type) {
		case mat.Matrix:
			r, c := m.Dims()
			rows := make([]any, r)
			for i := range rows {
				row := make([]any, c)
				for j := range row {
					row[j] = m.At(i, j)
				}
				rows[i] = row
			}
			out[k] = rows
		case [][]float64:
			rows := make([]any, len(m))
			for i, r := range m {
				row := make([]any, len(r))
				for j, x := range r {
					row[j] = x
				}
				rows[i] = row
			}
			out[k] = rows
		default:
			out[k] = v
		}
	}
	return out
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errors.Wrap(err, "embedding call failed")
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return errors.Mark(errors.New(st.Message()), tsne.ErrArgumentType)
	case codes.FailedPrecondition:
		return errors.Mark(errors.New(st.Message()), tsne.ErrNativeComputation)
	case codes.Unavailable:
		return errors.NewUnavailableError("%s", st.Message())
	default:
		return errors.Wrap(err, "embedding call failed")
	}
}
