package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yemeli/swiftride/pkg/models"
)

// AssertRideEqual asserts that two rides match on identity and lifecycle fields
func AssertRideEqual(t *testing.T, expected, actual *models.Ride) {
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.RiderID, actual.RiderID)
	assert.Equal(t, expected.DriverID, actual.DriverID)
	assert.Equal(t, expected.Status, actual.Status)
	assert.Equal(t, expected.Pickup, actual.Pickup)
	assert.Equal(t, expected.Destination, actual.Destination)
}

// AssertLedgerBalanced asserts the wallet balance invariant: balance equals
// the sum of completed credits minus completed debits.
func AssertLedgerBalanced(t *testing.T, wallet *models.Wallet, entries []*models.WalletTransaction) {
	var sum float64
	for _, tx := range entries {
		if tx.Status != models.TransactionStatusCompleted {
			continue
		}
		if tx.Direction == models.DirectionCredit {
			sum += tx.Amount
		} else {
			sum -= tx.Amount
		}
	}
	assert.InDelta(t, sum, wallet.Balance, 1e-9, "wallet balance must equal completed credits minus completed debits")
}
