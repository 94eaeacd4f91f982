package pipeline

import (
	"context"
)

// Run status labels carried in progress metadata.
const (
	StatusInitializing = "initializing"
	StatusAnalyzing    = "analyzing"
	StatusCompleted    = "completed"
)

// Progress is the metadata published at each stage boundary.
type Progress struct {
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Step     string `json:"step"`
}

// Stage boundaries, in execution order.
var (
	StageInitializing = Progress{Progress: 0, Status: StatusInitializing, Step: "Initialisation..."}
	StageDedup        = Progress{Progress: 10, Status: StatusInitializing, Step: "Vérification des doublons..."}
	StageExisting     = Progress{Progress: 100, Status: StatusCompleted, Step: "Offre existante trouvée"}
	StageAnalyzing    = Progress{Progress: 20, Status: StatusAnalyzing, Step: "Analyse de l'offre avec IA..."}
	StageFetching     = Progress{Progress: 20, Status: StatusAnalyzing, Step: "Récupération de la page..."}
	StageModel        = Progress{Progress: 30, Status: StatusAnalyzing, Step: "Analyse avec IA..."}
	StageValidating   = Progress{Progress: 50, Status: StatusAnalyzing, Step: "Traitement des résultats..."}
	StageCompany      = Progress{Progress: 70, Status: StatusAnalyzing, Step: "Création de l'entreprise..."}
	StageOffer        = Progress{Progress: 85, Status: StatusAnalyzing, Step: "Création de l'offre..."}
	StageDone         = Progress{Progress: 100, Status: StatusCompleted, Step: "Analyse terminée!"}
)

// ProgressSink receives progress updates for one run.
type ProgressSink interface {
	Report(ctx context.Context, p Progress) error
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, p Progress) error

// Report calls f.
func (f ProgressFunc) Report(ctx context.Context, p Progress) error {
	return f(ctx, p)
}

// NopProgress discards updates.
var NopProgress ProgressSink = ProgressFunc(func(context.Context, Progress) error { return nil })
