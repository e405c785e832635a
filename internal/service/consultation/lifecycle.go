package consultation

import (
	"github.com/jwalitptl/clinic-api/internal/model"
)

// transitions lists the allowed targets of every status. Completed and
// Cancelled have none.
var transitions = map[model.ConsultationStatus][]model.ConsultationStatus{
	model.ConsultationStatusPending: {
		model.ConsultationStatusConfirmed,
		model.ConsultationStatusInProgress,
		model.ConsultationStatusCompleted,
		model.ConsultationStatusCancelled,
		model.ConsultationStatusNoShow,
	},
	model.ConsultationStatusConfirmed: {
		model.ConsultationStatusInProgress,
		model.ConsultationStatusCompleted,
		model.ConsultationStatusCancelled,
		model.ConsultationStatusNoShow,
	},
	model.ConsultationStatusInProgress: {
		model.ConsultationStatusCompleted,
		model.ConsultationStatusCancelled,
		model.ConsultationStatusNoShow,
	},
	model.ConsultationStatusNoShow: {
		model.ConsultationStatusCancelled,
	},
}

// CanTransition reports whether a consultation in from may move to to.
func CanTransition(from, to model.ConsultationStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
