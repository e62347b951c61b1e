package ports

import "time"

// InstallOutcome classifies how a gem installation ended.
type InstallOutcome string

// Install outcomes.
const (
	OutcomeInstalled InstallOutcome = "installed"
	OutcomeCached    InstallOutcome = "cached"
	OutcomeFailed    InstallOutcome = "failed"
	OutcomeSkipped   InstallOutcome = "skipped"
)

// Metrics records counters about resolution and installation.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// ObserveInstall records the outcome of one gem and how long it took.
	ObserveInstall(outcome InstallOutcome, elapsed time.Duration)

	// ObserveResolve records one resolution and its search steps.
	ObserveResolve(fastPath bool, steps int)

	// Flush writes the collected metrics to path.
	Flush(path string) error
}
