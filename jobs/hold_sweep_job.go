package jobs

import (
	"log"

	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/services"
)

// Holds a few minutes past expiry are kept so an in-flight payment session
// can still find them; the sweep only reclaims clearly abandoned ones.
const sweepGraceMinutes = 5

func SweepExpiredHolds() {
	purged := services.PurgeExpiredHolds(database.DB, sweepGraceMinutes)
	if purged > 0 {
		log.Printf("Hold sweep reclaimed %d expired hold(s)", purged)
	}
}
