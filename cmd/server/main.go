// Command server runs the live rollup node: it admits operations and
// priority ops into blocks, seals them, has them proven, and submits them to
// the settlement chain — C4 through C8 running as one supervised process,
// per spec §6. Flags and subcommands follow the teacher's cmd/synnergy
// cobra root (cmd/synnergy/main.go): a thin main() registering commands.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"rollupnode/commitqueue"
	"rollupnode/committer"
	"rollupnode/config"
	"rollupnode/contract"
	"rollupnode/core"
	"rollupnode/ingress"
	"rollupnode/prover"
	"rollupnode/statekeeper"
)

func main() {
	var env string
	root := &cobra.Command{
		Use:   "server",
		Short: "run the rollup node's live commit/prove/execute pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(env)
		},
	}
	root.Flags().StringVar(&env, "env", "", "environment-specific config overlay (e.g. prod, staging)")
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("server exited with error")
		os.Exit(1)
	}
}

func runServer(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("server: load config: %w", err)
	}
	if lvl, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		logrus.SetLevel(lvl)
	}

	contractABI, err := contract.Parsed()
	if err != nil {
		return fmt.Errorf("server: parse contract abi: %w", err)
	}
	if len(cfg.Settlement.Gateways) == 0 {
		return fmt.Errorf("server: no settlement gateways configured")
	}
	contractAddr := common.HexToAddress(cfg.Settlement.ContractAddress)

	primary, err := ethclient.Dial(cfg.Settlement.Gateways[0])
	if err != nil {
		return fmt.Errorf("server: dial primary gateway: %w", err)
	}

	var watcher *ingress.MultiplexedGatewayWatcher
	if len(cfg.Settlement.Gateways) > 1 {
		gateways := make([]*ingress.Gateway, 0, len(cfg.Settlement.Gateways))
		for i, url := range cfg.Settlement.Gateways {
			cl, derr := ethclient.Dial(url)
			if derr != nil {
				return fmt.Errorf("server: dial gateway %d: %w", i, derr)
			}
			gateways = append(gateways, &ingress.Gateway{
				Name:    url,
				Client:  cl,
				Limiter: rate.NewLimiter(rate.Every(time.Second/10), 10),
			})
		}
		watcher = ingress.NewMultiplexedGatewayWatcher(gateways)
	}

	pool, err := committer.NewPool(committer.PoolConfig{
		DSN:          cfg.Persistence.DSN,
		MaxOpenConns: cfg.Persistence.MaxOpenConns,
		MaxIdleConns: cfg.Persistence.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("server: open persistence pool: %w", err)
	}
	defer pool.Close()

	wal, backlog, err := committer.OpenWAL(committer.WALConfig{
		Path:             cfg.Persistence.WALPath,
		SnapshotPath:     cfg.Persistence.SnapshotPath,
		SnapshotInterval: cfg.Persistence.SnapshotInterval,
		ArchivePath:      cfg.Persistence.ArchivePath,
		PruneInterval:    cfg.Persistence.PruneInterval,
	})
	if err != nil {
		return fmt.Errorf("server: open wal: %w", err)
	}
	defer wal.Close()
	if len(backlog) > 0 {
		logrus.WithField("count", len(backlog)).Warn("resuming with blocks still pending persistence")
	}

	gateway := committer.NewGateway(pool, wal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := core.NewAccountTree()
	lastCommitted, err := gateway.GetLastCommittedBlock(ctx)
	if err != nil {
		return fmt.Errorf("server: last committed block: %w", err)
	}
	var startNumber core.BlockNumber
	if lastCommitted == 0 {
		if gerr := core.Genesis(tree); gerr != nil {
			return fmt.Errorf("server: genesis: %w", gerr)
		}
		startNumber = 1
	} else {
		startNumber = lastCommitted + 1
	}

	budget := statekeeper.Budget{
		MaxChunks:     cfg.StateKeeper.MaxChunks,
		MaxGas:        cfg.StateKeeper.MaxGas,
		MaxOperations: cfg.StateKeeper.MaxOperations,
	}
	if budget == (statekeeper.Budget{}) {
		budget = statekeeper.DefaultBudget
	}

	sealedCh := make(chan *core.IncompleteBlock, 16)
	keeper, err := statekeeper.NewKeeper(tree, budget, 0, sealedCh)
	if err != nil {
		return fmt.Errorf("server: new keeper: %w", err)
	}

	ingressWatcher := ingress.NewWatcher(primary, contractAddr, contractABI, keeper, cfg.Settlement.FromBlock, 0)

	signer, err := commitqueue.NewOperatorSignerFromHex(cfg.Settlement.OperatorKeyHex)
	if err != nil {
		return fmt.Errorf("server: operator signer: %w", err)
	}
	maxGasPrice, ok := new(big.Int).SetString(cfg.CommitQueue.InitialMaxGasPrice, 10)
	if !ok {
		maxGasPrice = big.NewInt(500_000_000_000)
	}
	// Every sub-queue's counter must line up with actual block numbers
	// (AddPublishProofOperation is keyed by blk.Number, and commit/execute
	// dispatch priority compares counts against that same index), so all
	// three are seeded at startNumber rather than 0 when resuming.
	queue := commitqueue.NewQueueFrom(cfg.CommitQueue.MaxPendingTxs, 0, int(startNumber), int(startNumber), int(startNumber))
	adjuster := commitqueue.NewGasAdjuster(maxGasPrice)
	dispatcher := commitqueue.NewDispatcher(primary, contractAddr, big.NewInt(cfg.Settlement.ChainID), signer, queue, adjuster, cfg.CommitQueue.GasLimit, cfg.CommitQueue.StuckAfterBlocks)

	proverClient, err := prover.NewGRPCClient(cfg.Prover.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("server: prover client: %w", err)
	}
	defer proverClient.Close()

	pipeline := &sealedBlockPipeline{
		gateway:  gateway,
		wal:      wal,
		prover:   proverClient,
		encoder:  contract.NewEncoder(contractABI),
		queue:    queue,
		pollEach: durationOrDefault(cfg.Prover.PollIntervalMS, 2*time.Second),
		log:      logrus.WithField("component", "server_pipeline"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return keeper.Run(gctx, startNumber) })
	g.Go(func() error { return runTicker(gctx, 5*time.Second, ingressWatcher.Run) })
	if watcher != nil {
		g.Go(func() error { return runTicker(gctx, 15*time.Second, watcher.Run) })
	}
	g.Go(func() error {
		return dispatcher.Run(gctx, durationOrDefault(cfg.CommitQueue.PollIntervalMS, time.Second))
	})
	g.Go(func() error { return pipeline.run(gctx, sealedCh) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	g.Go(func() error {
		select {
		case <-sigCh:
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	return g.Wait()
}

func durationOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// runTicker drives a Run(ctx, <-chan struct{}) loop on a fixed interval,
// the shape both ingress.Watcher and ingress.MultiplexedGatewayWatcher
// share.
func runTicker(ctx context.Context, interval time.Duration, run func(context.Context, <-chan struct{}) error) error {
	ticks := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ticks <- struct{}{}:
				default:
				}
			}
		}
	}()
	return run(ctx, ticks)
}
