package store

import "context"

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error)
	GetExperiment(ctx context.Context, name string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	UpdateExperimentState(ctx context.Context, name string, state ExperimentState) error
	SetWinner(ctx context.Context, name, variant string) error
	DeleteExperiment(ctx context.Context, name string) error

	// Visit operations
	RecordVisit(ctx context.Context, v *Visit) (*Visit, error)
	ImportVisits(ctx context.Context, visits []Visit) (int, error)
	ListVisits(ctx context.Context, experiment, variant string) ([]Visit, error)

	// Event operations
	RecordEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, experiment string) ([]*Event, error)
	EventCounts(ctx context.Context, experiment string) ([]EventCount, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}
