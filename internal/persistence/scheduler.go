package persistence

import (
	"freedomwall/internal/persistence/interfaces"
	"freedomwall/internal/providers"
	"freedomwall/internal/structures"
	"sync"
	"time"
)

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	fileManager *FileManager
	metrics     providers.MetricsProviderInterface

	opsMu sync.Mutex
	stop  chan struct{}
	wg    sync.WaitGroup
}

func (s *Scheduler) enabled() bool {
	return s.fileManager.Enabled() && s.config.Persistence.FilePath != ""
}

func (s *Scheduler) Init() {
	if !s.enabled() || s.config.Persistence.SaveInterval <= 0 {
		s.logger.Infof(providers.TypeApp, "Snapshot persistence disabled")
		return
	}
	s.stop = make(chan struct{})
	ticker := time.NewTicker(s.config.Persistence.SaveInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Persist(); err == nil {
					s.logger.Debugf(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.stop != nil {
		close(s.stop)
		s.wg.Wait()
		s.stop = nil
	}
}

func (s *Scheduler) Restore() error {
	if !s.enabled() {
		return nil
	}
	return s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
}

func (s *Scheduler) Persist() error {
	if !s.enabled() {
		return nil
	}
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	snapshot, err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	for collection, records := range snapshot.Collections {
		s.metrics.SetRecordsTotal(collection, len(records))
	}
	return nil
}

// Close releases the compressor. Persist must not be called afterwards.
func (s *Scheduler) Close() {
	s.fileManager.Close()
}

func NewScheduler(config *structures.Config, logger providers.Logger, fileManager *FileManager, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		fileManager: fileManager,
		metrics:     metrics,
	}
}
