package database

import (
	"time"

	"github.com/google/uuid"
)

// StoredRun is one train/evaluate run recorded by an experiment sweep.
type StoredRun struct {
	ID        uuid.UUID
	SweepID   uuid.UUID
	SweepName string
	Parameter string  // swept parameter name (learning_rate, epochs, ...)
	Value     float64 // value of the swept parameter for this run

	Policy       string // fixed or adaptive
	Epochs       int
	LearningRate float64
	BlurRadius   float64
	PerturbTrain bool
	PerturbTest  bool
	Seed         uint64

	TrainPairs   int // rows that reached the classifier
	TestPairs    int // pairs that produced a prediction
	TrainSkipped int
	TestSkipped  int
	Shortfall    int // training rows missing after leakage filtering
	FinalLoss    float64

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64

	CreatedAt time.Time
}

// SweepSummary aggregates the runs of one sweep.
type SweepSummary struct {
	SweepID   uuid.UUID
	Name      string
	Parameter string
	Policy    string
	Runs      int
	BestF1    float64
	CreatedAt time.Time // time of the first run
}
