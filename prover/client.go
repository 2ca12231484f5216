// Package prover is the gRPC client side of the external prover interface
// named in spec §6. The prover itself — circuit construction, witness
// generation, proof computation — is out of scope; this package only
// defines the correlation-tracked submit/poll contract the state keeper and
// commit queue call against. Requests/responses travel as protobuf
// well-known types (structpb.Struct, wrapperspb.BytesValue) rather than a
// hand-generated service stub, since no .proto compiler runs in this build.
package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"rollupnode/core"
)

const (
	methodSubmitBlock = "/rollupnode.prover.v1.ProverService/SubmitBlock"
	methodPollProof   = "/rollupnode.prover.v1.ProverService/PollProof"
)

// Client is the state keeper / commit queue's view of the external prover:
// hand a sealed block's witness over, then poll until a proof is ready.
type Client interface {
	SubmitBlock(ctx context.Context, number core.BlockNumber, witness []byte) (correlationID string, err error)
	PollProof(ctx context.Context, number core.BlockNumber, correlationID string) (proof []byte, ready bool, err error)
}

// GRPCClient is the production Client, talking to a prover service over a
// long-lived connection.
type GRPCClient struct {
	conn *grpc.ClientConn
	log  *logrus.Entry
}

// NewGRPCClient dials target (a host:port or dns:/// name) and returns a
// ready client. The caller owns the connection's lifetime via Close.
func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("prover: dial %s: %w", target, err)
	}
	return &GRPCClient{conn: conn, log: logrus.WithField("component", "prover_client")}, nil
}

func (c *GRPCClient) Close() error { return c.conn.Close() }

func (c *GRPCClient) SubmitBlock(ctx context.Context, number core.BlockNumber, witness []byte) (string, error) {
	correlationID := uuid.NewString()
	req, err := structpb.NewStruct(map[string]interface{}{
		"block_number":   float64(number),
		"correlation_id": correlationID,
		"witness":        witness,
	})
	if err != nil {
		return "", fmt.Errorf("prover: encode submit request: %w", err)
	}
	var resp emptypb.Empty
	if err := c.conn.Invoke(ctx, methodSubmitBlock, req, &resp); err != nil {
		return "", fmt.Errorf("prover: submit block %d: %w", number, err)
	}
	c.log.WithField("block", number).WithField("correlation_id", correlationID).Info("submitted block witness to prover")
	return correlationID, nil
}

func (c *GRPCClient) PollProof(ctx context.Context, number core.BlockNumber, correlationID string) ([]byte, bool, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"block_number":   float64(number),
		"correlation_id": correlationID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("prover: encode poll request: %w", err)
	}
	var resp wrapperspb.BytesValue
	if err := c.conn.Invoke(ctx, methodPollProof, req, &resp); err != nil {
		return nil, false, fmt.Errorf("prover: poll proof %d: %w", number, err)
	}
	if len(resp.Value) == 0 {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

// PollUntilReady blocks, polling at interval, until the prover returns a
// proof or ctx is cancelled.
func PollUntilReady(ctx context.Context, c Client, number core.BlockNumber, correlationID string, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		proof, ready, err := c.PollProof(ctx, number, correlationID)
		if err != nil {
			return nil, err
		}
		if ready {
			return proof, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
