package criticalfactor

import (
	"context"
	"sync"
	"time"

	"github.com/hdu-care/hdu-service/internal/messaging"
	"github.com/rs/zerolog/log"
)

// CriticalLister is the part of the service the scanner needs.
type CriticalLister interface {
	CriticalPatients(ctx context.Context, query CriticalQuery) ([]CriticalPatient, error)
}

// Scanner re-evaluates the newest sample of every patient against the
// current configuration and publishes an alert for each sample that became
// or still is critical. A sample is announced once per process.
type Scanner struct {
	service   CriticalLister
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	lookback  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	announced map[string]string // patient id -> critical factor id
}

func NewScanner(service CriticalLister, publisher messaging.PublisherInterface, lookback time.Duration) *Scanner {
	return &Scanner{
		service:   service,
		publisher: publisher,
		lookback:  lookback,
		now:       time.Now,
		announced: map[string]string{},
	}
}

// WithMetrics sets the alert counter.
func (s *Scanner) WithMetrics(m MetricsRecorder) *Scanner {
	s.metrics = m
	return s
}

// Scan returns the number of alerts published.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	patients, err := s.service.CriticalPatients(ctx, CriticalQuery{Mode: ModeLatest})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.lookback)
	current := make(map[string]string, len(patients))
	published := 0
	for _, p := range patients {
		if s.lookback > 0 && p.RecordedAt.Before(cutoff) {
			continue
		}
		current[p.PatientID] = p.CriticalFactorID
		if s.announced[p.PatientID] == p.CriticalFactorID {
			continue
		}

		messaging.PublishAfterCommit(ctx, s.publisher, messaging.EventVitalsCritical,
			messaging.NewVitalsEvent(messaging.EventVitalsCritical, "", messaging.VitalsData{
				CriticalFactorID: p.CriticalFactorID,
				PatientID:        p.PatientID,
				RecordedAt:       p.RecordedAt,
				Flags:            p.Flags,
			}))
		if s.metrics != nil {
			s.metrics.RecordCriticalAlert(ctx, "scan")
		}
		published++
	}
	s.announced = current

	log.Info().Int("critical", len(current)).Int("published", published).Msg("critical vitals scan finished")
	return published, nil
}
