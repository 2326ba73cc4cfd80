package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/network"
)

// ServiceConfig selects what the setup service reconciles
type ServiceConfig struct {
	Namespace string
	L2Network bool
}

// Report summarizes a full setup run
type Report struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Tasks       *TaskReport    `json:"tasks"`
	Addresses   *AddressReport `json:"addresses"`
}

// Service registers the periodic tasks and seeds contract addresses for the detected network
type Service struct {
	logger     *zap.Logger
	reconciler *Reconciler
	detector   network.Detector
	addresses  AddressTable
	config     ServiceConfig
}

// NewService creates a new setup service
func NewService(reconciler *Reconciler, detector network.Detector, addresses AddressTable, config ServiceConfig, logger *zap.Logger) *Service {
	if config.Namespace == "" {
		config.Namespace = TaskNamespace
	}
	return &Service{
		logger:     logger.Named("setup"),
		reconciler: reconciler,
		detector:   detector,
		addresses:  addresses,
		config:     config,
	}
}

// Run reconciles the tasks and then the contract addresses
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	tasks, err := s.reconciler.ReconcileTasks(ctx, s.config.Namespace, DefaultTasks(s.config.L2Network))
	report.Tasks = tasks
	if err != nil {
		return report, fmt.Errorf("failed to reconcile tasks: %w", err)
	}

	logger.Info("Setting up Safe contract addresses")
	net, err := s.detector.GetNetwork(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to detect network: %w", err)
	}

	addresses, err := s.reconciler.ReconcileAddresses(ctx, net, s.addresses)
	report.Addresses = addresses
	if err != nil {
		return report, fmt.Errorf("failed to reconcile addresses: %w", err)
	}

	report.CompletedAt = time.Now()
	logger.Info("Setup completed",
		zap.Stringer("network", net),
		zap.Int("tasks", len(tasks.Tasks)),
		zap.Bool("warning", addresses.Warning),
		zap.Duration("duration", report.CompletedAt.Sub(report.StartedAt)))

	return report, nil
}
