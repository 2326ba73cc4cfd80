package setup

import "github.com/t77yq/txservice/internal/model"

// TaskNamespace prefixes every task managed by the reconciler
const TaskNamespace = "safe_transaction_service"

// DefaultTasks returns the periodic tasks of the transaction service.
// Internal-tx tracing is replaced by event indexing on L2 networks.
func DefaultTasks(l2 bool) []model.TaskDefinition {
	return []model.TaskDefinition{
		{
			Identifier:  TaskNamespace + ".history.tasks.index_internal_txs_task",
			DisplayName: "Index Internal Txs",
			Every:       13,
			Unit:        model.IntervalSeconds,
			Enabled:     !l2,
		},
		{
			Identifier:  TaskNamespace + ".history.tasks.index_safe_events_task",
			DisplayName: "Index Safe events (L2)",
			Every:       13,
			Unit:        model.IntervalSeconds,
			Enabled:     l2,
		},
		{
			Identifier:  TaskNamespace + ".history.tasks.index_new_proxies_task",
			DisplayName: "Index new Proxies",
			Every:       15,
			Unit:        model.IntervalSeconds,
			Enabled:     l2,
		},
		{
			Identifier:  TaskNamespace + ".history.tasks.process_decoded_internal_txs_task",
			DisplayName: "Process Internal Txs",
			Every:       2,
			Unit:        model.IntervalMinutes,
			Enabled:     true,
		},
		{
			Identifier:  TaskNamespace + ".history.tasks.check_reorgs_task",
			DisplayName: "Check Reorgs",
			Every:       3,
			Unit:        model.IntervalMinutes,
			Enabled:     true,
		},
		{
			Identifier:  TaskNamespace + ".contracts.tasks.create_missing_contracts_with_metadata_task",
			DisplayName: "Index contract names and ABIs",
			Every:       1,
			Unit:        model.IntervalHours,
			Enabled:     true,
		},
		{
			Identifier:  TaskNamespace + ".contracts.tasks.reindex_contracts_without_metadata",
			DisplayName: "Reindex contracts with missing names or ABIs",
			Every:       7,
			Unit:        model.IntervalDays,
			Enabled:     true,
		},
		{
			Identifier:  TaskNamespace + ".tokens.tasks.fix_pool_tokens_task",
			DisplayName: "Fix Pool Token Names",
			Every:       1,
			Unit:        model.IntervalHours,
			Enabled:     true,
		},
	}
}

// AddressTable holds the known contract deployments per network
type AddressTable struct {
	MasterCopies   map[model.Network][]model.MasterCopyDefinition
	ProxyFactories map[model.Network][]model.ProxyFactoryDefinition
}

// DefaultAddressTable returns the Safe deployments known to the service
func DefaultAddressTable() AddressTable {
	return AddressTable{
		MasterCopies: map[model.Network][]model.MasterCopyDefinition{
			model.NetworkApothem: {
				{Address: "0xa73db6fc68A22da7774369FA0e43d507679C62BB", InitialBlockNumber: 21844862, Version: "1.3.0+L2"},
			},
		},
		ProxyFactories: map[model.Network][]model.ProxyFactoryDefinition{
			model.NetworkApothem: {
				{Address: "0xEa79c1354B319E867A024f399405148F772aeB3b", InitialBlockNumber: 21917812}, // v1.3.0
			},
		},
	}
}
