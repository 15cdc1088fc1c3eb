package rides

import "github.com/yemeli/swiftride/pkg/models"

// Legal lifecycle transitions. Everything else is rejected, including
// any move out of a terminal state.
var transitions = map[models.RideStatus]map[models.RideStatus]bool{
	models.RideStatusPending: {
		models.RideStatusAccepted:  true,
		models.RideStatusCancelled: true,
	},
	models.RideStatusAccepted: {
		models.RideStatusInProgress: true,
		models.RideStatusCancelled:  true,
	},
	models.RideStatusInProgress: {
		models.RideStatusCompleted: true,
		models.RideStatusCancelled: true,
	},
}

// CanTransition reports whether a ride may move from one status to
// another
func CanTransition(from, to models.RideStatus) bool {
	return transitions[from][to]
}
