package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/formai/engine/internal/logger"
	"github.com/rs/zerolog"
)

const (
	// DefaultCheckpointInterval is how often to save checkpoints
	DefaultCheckpointInterval = 5 * time.Minute
	// DefaultMaxCheckpoints is how many checkpoint files to keep
	DefaultMaxCheckpoints = 5
	// CheckpointFilePattern is the filename pattern for checkpoints
	CheckpointFilePattern = "checkpoint-%019d.json"
)

// CheckpointManager periodically records a summary of every namespace
type CheckpointManager struct {
	storage          *Storage
	checkpointDir    string
	interval         time.Duration
	maxCheckpoints   int
	stopCh           chan struct{}
	wg               sync.WaitGroup
	log              zerolog.Logger
	lastCheckpointAt time.Time
	running          bool
	mu               sync.RWMutex
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(storage *Storage, checkpointDir string, interval time.Duration) *CheckpointManager {
	return &CheckpointManager{
		storage:        storage,
		checkpointDir:  checkpointDir,
		interval:       interval,
		maxCheckpoints: DefaultMaxCheckpoints,
		log:            logger.WithComponent("checkpoint"),
	}
}

// Start starts the checkpoint loop
func (cm *CheckpointManager) Start() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.running {
		return
	}
	cm.running = true
	cm.stopCh = make(chan struct{})

	cm.wg.Add(1)
	go cm.run(cm.stopCh)
	cm.log.Info().Dur("interval", cm.interval).Msg("Checkpoint manager started")
}

// Stop stops the loop and saves a final checkpoint
func (cm *CheckpointManager) Stop() error {
	cm.mu.Lock()
	if !cm.running {
		cm.mu.Unlock()
		return nil
	}
	cm.running = false
	close(cm.stopCh)
	cm.mu.Unlock()

	cm.wg.Wait()

	if err := cm.SaveCheckpoint(); err != nil {
		return fmt.Errorf("failed to save final checkpoint: %w", err)
	}

	cm.log.Info().Msg("Checkpoint manager stopped")
	return nil
}

func (cm *CheckpointManager) run(stopCh chan struct{}) {
	defer cm.wg.Done()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := cm.SaveCheckpoint(); err != nil {
				cm.log.Error().Err(err).Msg("Failed to save checkpoint")
			}
		}
	}
}

// SaveCheckpoint writes the current namespace summary to a new file
func (cm *CheckpointManager) SaveCheckpoint() error {
	start := time.Now()
	checkpoint := cm.collectState(context.Background())

	cm.mu.Lock()
	defer cm.mu.Unlock()

	checkpointPath := cm.getCheckpointPath(checkpoint.Timestamp)
	if err := checkpoint.Save(checkpointPath); err != nil {
		return err
	}

	if err := cm.rotateCheckpoints(); err != nil {
		cm.log.Warn().Err(err).Msg("Failed to rotate old checkpoints")
	}

	cm.lastCheckpointAt = checkpoint.Timestamp

	cm.log.Debug().
		Str("path", checkpointPath).
		Int("namespaces", len(checkpoint.Namespaces)).
		Int("records", checkpoint.Records()).
		Dur("duration", time.Since(start)).
		Msg("Checkpoint saved")

	return nil
}

// collectState reads every registered namespace and counts its records
func (cm *CheckpointManager) collectState(ctx context.Context) *Checkpoint {
	checkpoint := NewCheckpoint()
	checkpoint.Forms = -1

	if cm.storage.formsDB != nil {
		var n int
		err := cm.storage.formsDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`).Scan(&n)
		if err == nil {
			checkpoint.Forms = n
		} else {
			cm.log.Debug().Err(err).Msg("Forms not counted")
		}
	}

	if cm.storage.provisioner == nil {
		return checkpoint
	}

	for _, config := range cm.storage.provisioner.Namespaces() {
		entry := &NamespaceCheckpoint{FormID: config.FormID}
		if config.Shape != nil {
			entry.FormVersion = config.Shape.FormVersion
			entry.Fields = len(config.Shape.Fields)
		}

		h, err := cm.storage.provisioner.Lookup(config.FormID)
		if err != nil {
			cm.log.Warn().Err(err).Str("namespace", config.Name).Msg("Failed to open namespace for checkpoint")
			continue
		}
		if entry.Records, err = h.Count(ctx); err != nil {
			cm.log.Warn().Err(err).Str("namespace", config.Name).Msg("Failed to count records for checkpoint")
			continue
		}
		checkpoint.Namespaces[config.Name] = entry
	}

	return checkpoint
}

// LoadLatestCheckpoint loads the most recent checkpoint
func (cm *CheckpointManager) LoadLatestCheckpoint() (*Checkpoint, error) {
	checkpoints, err := cm.listCheckpoints()
	if err != nil {
		return nil, err
	}

	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("no checkpoints found")
	}

	latestPath := checkpoints[len(checkpoints)-1]
	checkpoint, err := LoadCheckpoint(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", latestPath, err)
	}

	return checkpoint, nil
}

func (cm *CheckpointManager) getCheckpointPath(timestamp time.Time) string {
	return filepath.Join(cm.checkpointDir, fmt.Sprintf(CheckpointFilePattern, timestamp.UnixNano()))
}

// listCheckpoints lists all checkpoint files, oldest first
func (cm *CheckpointManager) listCheckpoints() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(cm.checkpointDir, "checkpoint-*.json"))
	if err != nil {
		return nil, err
	}

	// zero padded timestamps sort lexically
	sort.Strings(files)
	return files, nil
}

// rotateCheckpoints removes all but the newest maxCheckpoints files
func (cm *CheckpointManager) rotateCheckpoints() error {
	checkpoints, err := cm.listCheckpoints()
	if err != nil {
		return err
	}

	if len(checkpoints) <= cm.maxCheckpoints {
		return nil
	}
	for _, path := range checkpoints[:len(checkpoints)-cm.maxCheckpoints] {
		if err := os.Remove(path); err != nil {
			cm.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old checkpoint")
		}
	}
	return nil
}

// LastCheckpointTime returns the timestamp of the last checkpoint
func (cm *CheckpointManager) LastCheckpointTime() time.Time {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.lastCheckpointAt
}
