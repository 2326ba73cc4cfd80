package setup

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/metrics"
	"github.com/t77yq/txservice/internal/model"
	"github.com/t77yq/txservice/internal/storage"
)

// TaskResult is the outcome of reconciling a single task definition
type TaskResult struct {
	Task    string `json:"task"`
	Created bool   `json:"created"`
}

// TaskReport summarizes a task reconciliation run
type TaskReport struct {
	Namespace string       `json:"namespace"`
	Removed   int64        `json:"removed"`
	Tasks     []TaskResult `json:"tasks"`
}

// AddressResult is the outcome of reconciling a single contract address
type AddressResult struct {
	Address string `json:"address"`
	Created bool   `json:"created"`
	Updated bool   `json:"updated"`
}

// AddressReport summarizes an address reconciliation run
type AddressReport struct {
	Network        model.Network   `json:"network"`
	MasterCopies   []AddressResult `json:"master_copies,omitempty"`
	ProxyFactories []AddressResult `json:"proxy_factories,omitempty"`
	// Warning is set when the network is missing from one of the address tables
	Warning bool `json:"warning"`
}

// Reconciler brings the task and deployment stores in line with static definitions
type Reconciler struct {
	logger      *zap.Logger
	tasks       storage.TaskStore
	deployments storage.DeploymentStore
}

// NewReconciler creates a new reconciler
func NewReconciler(tasks storage.TaskStore, deployments storage.DeploymentStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		logger:      logger.Named("reconciler"),
		tasks:       tasks,
		deployments: deployments,
	}
}

// ReconcileTasks removes every task under namespace and recreates them from defs.
// There is no rollback: an error on one definition leaves the previous ones committed.
func (r *Reconciler) ReconcileTasks(ctx context.Context, namespace string, defs []model.TaskDefinition) (*TaskReport, error) {
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}

	r.logger.Info("Removing old tasks", zap.String("namespace", namespace))
	removed, err := r.tasks.DeleteTasksWithPrefix(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to remove old tasks: %w", err)
	}
	r.logger.Info("Old tasks were removed", zap.Int64("removed", removed))

	report := &TaskReport{
		Namespace: namespace,
		Removed:   removed,
		Tasks:     make([]TaskResult, 0, len(defs)),
	}

	for _, def := range defs {
		created, err := r.reconcileTask(ctx, def)
		if err != nil {
			return report, err
		}

		report.Tasks = append(report.Tasks, TaskResult{Task: def.Identifier, Created: created})
		if created {
			metrics.TasksReconciledTotal.WithLabelValues("created").Inc()
			r.logger.Info("Created periodic task", zap.String("task", def.Identifier))
		} else {
			metrics.TasksReconciledTotal.WithLabelValues("existing").Inc()
			r.logger.Info("Task was already created", zap.String("task", def.Identifier))
		}
	}

	return report, nil
}

func (r *Reconciler) reconcileTask(ctx context.Context, def model.TaskDefinition) (bool, error) {
	interval, _, err := r.tasks.GetOrCreateInterval(ctx, def.Every, def.Unit)
	if err != nil {
		return false, fmt.Errorf("failed to get interval for task %s: %w", def.Identifier, err)
	}

	task, created, err := r.tasks.GetOrCreateTask(ctx, &model.ScheduledTask{
		Task:       def.Identifier,
		Name:       def.DisplayName,
		IntervalID: interval.ID,
		Enabled:    def.Enabled,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get task %s: %w", def.Identifier, err)
	}
	if created {
		return true, nil
	}

	task.Name = def.DisplayName
	task.IntervalID = interval.ID
	task.Interval = interval
	task.Enabled = def.Enabled
	if err := r.tasks.UpdateTask(ctx, task); err != nil {
		return false, fmt.Errorf("failed to update task %s: %w", def.Identifier, err)
	}
	return false, nil
}

func validateDefinitions(defs []model.TaskDefinition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if _, ok := seen[def.Identifier]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, def.Identifier)
		}
		seen[def.Identifier] = struct{}{}
	}
	return nil
}

// ReconcileAddresses seeds the master copies and proxy factories known for network.
// Existing records only get their declarative fields refreshed; the indexing cursor
// (CurrentBlockNumber) is left alone.
func (r *Reconciler) ReconcileAddresses(ctx context.Context, network model.Network, table AddressTable) (*AddressReport, error) {
	report := &AddressReport{Network: network}

	masterCopies, hasMasterCopies := table.MasterCopies[network]
	if hasMasterCopies {
		r.logger.Info("Setting up safe master copy addresses", zap.Stringer("network", network))
		for _, def := range masterCopies {
			result, err := r.reconcileMasterCopy(ctx, def)
			if err != nil {
				return report, err
			}
			report.MasterCopies = append(report.MasterCopies, result)
		}
	}

	proxyFactories, hasProxyFactories := table.ProxyFactories[network]
	if hasProxyFactories {
		r.logger.Info("Setting up proxy factory addresses", zap.Stringer("network", network))
		for _, def := range proxyFactories {
			result, err := r.reconcileProxyFactory(ctx, def)
			if err != nil {
				return report, err
			}
			report.ProxyFactories = append(report.ProxyFactories, result)
		}
	}

	if !hasMasterCopies || !hasProxyFactories {
		report.Warning = true
		r.logger.Warn("Cannot detect a valid ethereum network",
			zap.Stringer("network", network),
			zap.Bool("master_copies", hasMasterCopies),
			zap.Bool("proxy_factories", hasProxyFactories))
	}

	return report, nil
}

func (r *Reconciler) reconcileMasterCopy(ctx context.Context, def model.MasterCopyDefinition) (AddressResult, error) {
	address, err := normalizeAddress(def.Address)
	if err != nil {
		return AddressResult{}, err
	}
	result := AddressResult{Address: address}

	masterCopy, created, err := r.deployments.GetOrCreateMasterCopy(ctx, &model.MasterCopy{
		Address:            address,
		InitialBlockNumber: def.InitialBlockNumber,
		CurrentBlockNumber: def.InitialBlockNumber,
		Version:            def.Version,
		L2:                 def.IsL2(),
	})
	if err != nil {
		return result, fmt.Errorf("failed to get master copy %s: %w", address, err)
	}
	result.Created = created

	switch {
	case created:
		metrics.AddressesReconciledTotal.WithLabelValues("master_copy", "created").Inc()
		r.logger.Info("Created master copy",
			zap.String("address", address),
			zap.String("version", def.Version),
			zap.Uint64("initial_block_number", def.InitialBlockNumber))
	case masterCopy.Version != def.Version || masterCopy.InitialBlockNumber != def.InitialBlockNumber:
		if err := r.deployments.UpdateMasterCopyMetadata(ctx, address, def.InitialBlockNumber, def.Version); err != nil {
			return result, fmt.Errorf("failed to update master copy %s: %w", address, err)
		}
		result.Updated = true
		metrics.AddressesReconciledTotal.WithLabelValues("master_copy", "updated").Inc()
		r.logger.Info("Updated master copy",
			zap.String("address", address),
			zap.String("old_version", masterCopy.Version),
			zap.String("version", def.Version),
			zap.Uint64("initial_block_number", def.InitialBlockNumber))
	default:
		metrics.AddressesReconciledTotal.WithLabelValues("master_copy", "unchanged").Inc()
	}

	return result, nil
}

func (r *Reconciler) reconcileProxyFactory(ctx context.Context, def model.ProxyFactoryDefinition) (AddressResult, error) {
	address, err := normalizeAddress(def.Address)
	if err != nil {
		return AddressResult{}, err
	}

	_, created, err := r.deployments.GetOrCreateProxyFactory(ctx, &model.ProxyFactory{
		Address:            address,
		InitialBlockNumber: def.InitialBlockNumber,
		CurrentBlockNumber: def.InitialBlockNumber,
	})
	if err != nil {
		return AddressResult{Address: address}, fmt.Errorf("failed to get proxy factory %s: %w", address, err)
	}

	if created {
		metrics.AddressesReconciledTotal.WithLabelValues("proxy_factory", "created").Inc()
		r.logger.Info("Created proxy factory",
			zap.String("address", address),
			zap.Uint64("initial_block_number", def.InitialBlockNumber))
	} else {
		metrics.AddressesReconciledTotal.WithLabelValues("proxy_factory", "unchanged").Inc()
	}

	return AddressResult{Address: address, Created: created}, nil
}

// normalizeAddress returns the EIP-55 checksum form so case variants share one row
func normalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(address).Hex(), nil
}
