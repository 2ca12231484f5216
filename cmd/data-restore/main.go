// Command data-restore rebuilds the account tree purely from the
// settlement chain's own event log, per spec §4.7/§6. It supports three
// modes: --genesis (replay from block zero, ignoring any checkpoint),
// --continue (resume from the last checkpointed block), and --finite. Every
// run makes one pass up to the settlement chain's current head and exits;
// --finite only adds a log line when that pass completes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rollupnode/committer"
	"rollupnode/config"
	"rollupnode/contract"
	"rollupnode/core"
	"rollupnode/datarestore"
)

func main() {
	var (
		genesis   bool
		continue_ bool
		finite    bool
		fromBlock uint64
		env       string
	)
	root := &cobra.Command{
		Use:   "data-restore",
		Short: "rebuild the account tree from the settlement chain's event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if genesis == continue_ {
				return fmt.Errorf("data-restore: exactly one of --genesis or --continue must be set")
			}
			return run(genesis, finite, fromBlock, env)
		},
	}
	root.Flags().BoolVar(&genesis, "genesis", false, "replay from the settlement chain's genesis block")
	root.Flags().BoolVar(&continue_, "continue", false, "resume from the last checkpointed block")
	root.Flags().BoolVar(&finite, "finite", false, "log completion of the pass (every run makes one pass up to the current head and exits)")
	root.Flags().Uint64Var(&fromBlock, "from-eth-block", 0, "settlement-chain block to start --genesis replay from")
	root.Flags().StringVar(&env, "env", "", "environment-specific config overlay")
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("data-restore exited with error")
		os.Exit(1)
	}
}

func run(genesis, finite bool, fromBlock uint64, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("data-restore: load config: %w", err)
	}
	if len(cfg.Settlement.Gateways) == 0 {
		return fmt.Errorf("data-restore: no settlement gateways configured")
	}

	client, err := ethclient.Dial(cfg.Settlement.Gateways[0])
	if err != nil {
		return fmt.Errorf("data-restore: dial gateway: %w", err)
	}
	contractABI, err := contract.Parsed()
	if err != nil {
		return fmt.Errorf("data-restore: parse contract abi: %w", err)
	}
	contractAddr := common.HexToAddress(cfg.Settlement.ContractAddress)

	pool, err := committer.NewPool(committer.PoolConfig{
		DSN:          cfg.Persistence.DSN,
		MaxOpenConns: cfg.Persistence.MaxOpenConns,
		MaxIdleConns: cfg.Persistence.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("data-restore: open persistence pool: %w", err)
	}
	defer pool.Close()
	gateway := committer.NewGateway(pool, nil)

	tree := core.NewAccountTree()
	ctx := context.Background()

	if genesis {
		if err := core.Genesis(tree); err != nil {
			return fmt.Errorf("data-restore: genesis: %w", err)
		}
	}

	driver := datarestore.NewDriver(client, contractAddr, contractABI, tree, checkpointAdapter{gateway}, 0)

	if genesis {
		err = driver.RunFromGenesis(ctx, fromBlock)
	} else {
		err = driver.Continue(ctx, fromBlock)
	}
	if err != nil {
		return fmt.Errorf("data-restore: replay: %w", err)
	}

	if finite {
		logrus.Info("data-restore: finite pass complete")
	}
	return nil
}

// checkpointAdapter satisfies datarestore.Checkpoint over the committer
// package's persistence gateway, whose method names follow the full
// commit/prove/execute persistence contract rather than data restore's
// narrower two-method view of it.
type checkpointAdapter struct{ g *committer.Gateway }

func (c checkpointAdapter) LastRestoredBlock(ctx context.Context) (core.BlockNumber, error) {
	return c.g.GetLastCommittedBlock(ctx)
}

func (c checkpointAdapter) SaveRestoredBlock(ctx context.Context, blk *core.IncompleteBlock) error {
	return c.g.SaveIncompleteBlock(ctx, blk)
}
