package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/t77yq/txservice/internal/model"
)

// GetOrCreateMasterCopy implements DeploymentStore.GetOrCreateMasterCopy
func (s *SQLiteStore) GetOrCreateMasterCopy(ctx context.Context, defaults *model.MasterCopy) (*model.MasterCopy, bool, error) {
	var (
		masterCopy *model.MasterCopy
		created    bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO master_copies (address, initial_block_number, current_block_number, version, l2)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (address) DO NOTHING`,
			defaults.Address,
			defaults.InitialBlockNumber,
			defaults.CurrentBlockNumber,
			defaults.Version,
			defaults.L2,
		)
		if err != nil {
			return fmt.Errorf("failed to insert master copy: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		created = affected == 1

		masterCopy, err = scanMasterCopy(tx.QueryRowContext(ctx, selectMasterCopy+" WHERE address = ?", defaults.Address))
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return masterCopy, created, nil
}

// UpdateMasterCopyMetadata implements DeploymentStore.UpdateMasterCopyMetadata
func (s *SQLiteStore) UpdateMasterCopyMetadata(ctx context.Context, address string, initialBlockNumber uint64, version string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE master_copies SET
			initial_block_number = ?,
			version = ?
		WHERE address = ?`, initialBlockNumber, version, address)
	if err != nil {
		return fmt.Errorf("failed to update master copy: %w", err)
	}
	return requireAffected(result, "master copy", address)
}

// SetMasterCopyBlockNumber implements DeploymentStore.SetMasterCopyBlockNumber
func (s *SQLiteStore) SetMasterCopyBlockNumber(ctx context.Context, address string, blockNumber uint64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE master_copies SET current_block_number = ? WHERE address = ?", blockNumber, address)
	if err != nil {
		return fmt.Errorf("failed to update master copy block number: %w", err)
	}
	return requireAffected(result, "master copy", address)
}

// GetMasterCopy implements DeploymentStore.GetMasterCopy
func (s *SQLiteStore) GetMasterCopy(ctx context.Context, address string) (*model.MasterCopy, error) {
	return scanMasterCopy(s.db.QueryRowContext(ctx, selectMasterCopy+" WHERE address = ?", address))
}

// ListMasterCopies implements DeploymentStore.ListMasterCopies
func (s *SQLiteStore) ListMasterCopies(ctx context.Context) ([]*model.MasterCopy, error) {
	rows, err := s.db.QueryContext(ctx, selectMasterCopy+" ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("failed to list master copies: %w", err)
	}
	defer rows.Close()

	var masterCopies []*model.MasterCopy
	for rows.Next() {
		masterCopy, err := scanMasterCopy(rows)
		if err != nil {
			return nil, err
		}
		masterCopies = append(masterCopies, masterCopy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return masterCopies, nil
}

// GetOrCreateProxyFactory implements DeploymentStore.GetOrCreateProxyFactory
func (s *SQLiteStore) GetOrCreateProxyFactory(ctx context.Context, defaults *model.ProxyFactory) (*model.ProxyFactory, bool, error) {
	var (
		factory *model.ProxyFactory
		created bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO proxy_factories (address, initial_block_number, current_block_number)
			VALUES (?, ?, ?)
			ON CONFLICT (address) DO NOTHING`,
			defaults.Address,
			defaults.InitialBlockNumber,
			defaults.CurrentBlockNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to insert proxy factory: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		created = affected == 1

		factory, err = scanProxyFactory(tx.QueryRowContext(ctx, selectProxyFactory+" WHERE address = ?", defaults.Address))
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return factory, created, nil
}

// GetProxyFactory implements DeploymentStore.GetProxyFactory
func (s *SQLiteStore) GetProxyFactory(ctx context.Context, address string) (*model.ProxyFactory, error) {
	return scanProxyFactory(s.db.QueryRowContext(ctx, selectProxyFactory+" WHERE address = ?", address))
}

// ListProxyFactories implements DeploymentStore.ListProxyFactories
func (s *SQLiteStore) ListProxyFactories(ctx context.Context) ([]*model.ProxyFactory, error) {
	rows, err := s.db.QueryContext(ctx, selectProxyFactory+" ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("failed to list proxy factories: %w", err)
	}
	defer rows.Close()

	var factories []*model.ProxyFactory
	for rows.Next() {
		factory, err := scanProxyFactory(rows)
		if err != nil {
			return nil, err
		}
		factories = append(factories, factory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return factories, nil
}

const (
	selectMasterCopy   = "SELECT address, initial_block_number, current_block_number, version, l2 FROM master_copies"
	selectProxyFactory = "SELECT address, initial_block_number, current_block_number FROM proxy_factories"
)

func scanMasterCopy(row rowScanner) (*model.MasterCopy, error) {
	var masterCopy model.MasterCopy
	err := row.Scan(
		&masterCopy.Address,
		&masterCopy.InitialBlockNumber,
		&masterCopy.CurrentBlockNumber,
		&masterCopy.Version,
		&masterCopy.L2,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan master copy: %w", err)
	}
	return &masterCopy, nil
}

func scanProxyFactory(row rowScanner) (*model.ProxyFactory, error) {
	var factory model.ProxyFactory
	err := row.Scan(
		&factory.Address,
		&factory.InitialBlockNumber,
		&factory.CurrentBlockNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan proxy factory: %w", err)
	}
	return &factory, nil
}

func requireAffected(result sql.Result, kind, key string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
	}
	return nil
}
