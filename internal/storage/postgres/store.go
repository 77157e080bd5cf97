// Package postgres persists pool and epoch snapshots for offline analysis.
package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sugarswap/internal/model"
)

// Store provides Postgres persistence for catalog and epoch snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool snapshots. Reserves and volumes are
// stored as numeric text to keep full uint256 precision.
func (s *Store) UpsertPools(ctx context.Context, chainID uint64, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, symbol, token0, token1,
				reserve0, reserve1, volume0, volume1, fees0, fees1,
				tvl, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fees0 = EXCLUDED.fees0,
				fees1 = EXCLUDED.fees1,
				tvl = EXCLUDED.tvl,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			int64(chainID),
			pool.Address.Hex(),
			pool.Symbol,
			pool.Token0.Address.Hex(),
			pool.Token1.Address.Hex(),
			numeric(pool.Reserve0),
			numeric(pool.Reserve1),
			numeric(pool.Volume0),
			numeric(pool.Volume1),
			numeric(pool.Fees0),
			numeric(pool.Fees1),
			pool.TVL,
			pool.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertEpochs inserts or updates epoch aggregates keyed by (pool, start).
func (s *Store) UpsertEpochs(ctx context.Context, chainID uint64, epochs []model.Epoch) error {
	if len(epochs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, epoch := range epochs {
		batch.Queue(`
			INSERT INTO pool_epochs (
				chain_id, pool_address, epoch_start,
				total_fees, total_incentives, priced_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,now(),now())
			ON CONFLICT (chain_id, pool_address, epoch_start)
			DO UPDATE SET
				total_fees = EXCLUDED.total_fees,
				total_incentives = EXCLUDED.total_incentives,
				priced_at = EXCLUDED.priced_at,
				updated_at = now()
		`,
			int64(chainID),
			epoch.Pool.Hex(),
			epoch.Start.UTC(),
			epoch.TotalFees,
			epoch.TotalIncentives,
			epoch.PricedAt.UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range epochs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecordSwap appends one executed swap for auditability.
func (s *Store) RecordSwap(ctx context.Context, quote *model.Quote, receipt model.Receipt) error {
	if quote == nil {
		return fmt.Errorf("nil quote")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swaps (
			chain_id, tx_hash, from_token, to_token, amount_in, amount_out, submitted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (chain_id, tx_hash) DO NOTHING
	`,
		int64(receipt.ChainID),
		receipt.TxHash.Hex(),
		quote.FromToken.Address.Hex(),
		quote.ToToken.Address.Hex(),
		numeric(quote.AmountIn),
		numeric(quote.AmountOut),
		time.Now().UTC(),
	)
	return err
}

func numeric(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}
