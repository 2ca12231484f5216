// Command prover runs the gRPC service the state keeper/commit queue's
// prover.Client submits witnesses to, per spec §6's external prover
// interface. Circuit construction, witness generation, and actual proof
// computation are proof-system internals (Non-goals) — this service instead
// derives a deterministic placeholder proof from the submitted witness so
// the submit/poll round trip and the settlement pipeline downstream of it
// are exercised end to end.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName       = "rollupnode.prover.v1.ProverService"
	methodSubmitBlock = "SubmitBlock"
	methodPollProof   = "PollProof"

	// provingDelay simulates the latency of real proof generation so
	// PollProof's "not ready yet" path is actually reachable by a caller
	// polling faster than this.
	provingDelay = 3 * time.Second
)

func main() {
	var listenAddr string
	root := &cobra.Command{
		Use:   "prover",
		Short: "serve the external prover gRPC interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProver(listenAddr)
		},
	}
	root.Flags().StringVar(&listenAddr, "listen", ":7070", "gRPC listen address")
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("prover exited with error")
		os.Exit(1)
	}
}

func runProver(listenAddr string) error {
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("prover: listen %s: %w", listenAddr, err)
	}
	srv := grpc.NewServer()
	svc := &proverService{jobs: make(map[string]*job)}
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: methodSubmitBlock, Handler: svc.handleSubmitBlock},
			{MethodName: methodPollProof, Handler: svc.handlePollProof},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "prover.proto",
	}, svc)

	logrus.WithField("addr", listenAddr).Info("prover service listening")
	return srv.Serve(lis)
}

type job struct {
	readyAt time.Time
	proof   []byte
}

// proverService is the handler target for the hand-registered ServiceDesc
// above; no generated stub exists since no .proto compiler runs in this
// build, matching prover.Client's own bare grpc.ClientConn.Invoke calls.
type proverService struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func (s *proverService) handleSubmitBlock(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var req structpb.Struct
	if err := dec(&req); err != nil {
		return nil, err
	}
	fields := req.GetFields()
	correlationID := fields["correlation_id"].GetStringValue()
	witness, err := base64.StdEncoding.DecodeString(fields["witness"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("prover: decode witness: %w", err)
	}

	proof := sha256.Sum256(witness)
	s.mu.Lock()
	s.jobs[correlationID] = &job{readyAt: time.Now().Add(provingDelay), proof: proof[:]}
	s.mu.Unlock()

	return &emptypb.Empty{}, nil
}

func (s *proverService) handlePollProof(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var req structpb.Struct
	if err := dec(&req); err != nil {
		return nil, err
	}
	correlationID := req.GetFields()["correlation_id"].GetStringValue()

	s.mu.Lock()
	j, ok := s.jobs[correlationID]
	s.mu.Unlock()
	if !ok || time.Now().Before(j.readyAt) {
		return &wrapperspb.BytesValue{Value: nil}, nil
	}
	return &wrapperspb.BytesValue{Value: j.proof}, nil
}
