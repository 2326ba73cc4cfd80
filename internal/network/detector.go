package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/model"
)

// Detector resolves the network the service is connected to
type Detector interface {
	GetNetwork(ctx context.Context) (model.Network, error)
}

// StaticDetector always reports the same network
type StaticDetector model.Network

// GetNetwork implements Detector
func (d StaticDetector) GetNetwork(context.Context) (model.Network, error) {
	return model.Network(d), nil
}

// EthereumDetector asks an ethereum node for its chain id
type EthereumDetector struct {
	logger  *zap.Logger
	nodeURL string

	mu     sync.Mutex
	client *ethclient.Client
}

// NewEthereumDetector creates a detector for the node at nodeURL. The connection
// is opened lazily on the first GetNetwork call.
func NewEthereumDetector(nodeURL string, logger *zap.Logger) *EthereumDetector {
	return &EthereumDetector{
		logger:  logger.Named("network"),
		nodeURL: nodeURL,
	}
}

// GetNetwork implements Detector
func (d *EthereumDetector) GetNetwork(ctx context.Context) (model.Network, error) {
	client, err := d.dial(ctx)
	if err != nil {
		return model.NetworkUnknown, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return model.NetworkUnknown, fmt.Errorf("failed to get chain id: %w", err)
	}

	network := model.NetworkFromChainID(chainID)
	d.logger.Info("Detected network",
		zap.String("chain_id", chainID.String()),
		zap.Stringer("network", network))

	return network, nil
}

func (d *EthereumDetector) dial(ctx context.Context) (*ethclient.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	client, err := ethclient.DialContext(ctx, d.nodeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	d.client = client
	return client, nil
}

// Close closes the node connection
func (d *EthereumDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
}
