package escrow

// Reputation is the per-user trust aggregate adjusted when an escrow
// reaches COMPLETED or REFUNDED. TrustLevel stays inside [0, 100]: deltas
// clamp at the bounds, they never wrap.
type Reputation struct {
	UserID         string `json:"userId"`
	TrustLevel     int    `json:"trustLevel"`
	CompletedCount int    `json:"completedCount"`
	RefundedCount  int    `json:"refundedCount"`
	DisputedCount  int    `json:"disputedCount"`
}

const (
	trustFloor   = 0
	trustCeiling = 100
	trustInitial = 50
)

// trust deltas per outcome
const (
	completedSellerDelta = 2
	completedBuyerDelta  = 1
	refundedSellerDelta  = -3
	disputedDelta        = -1
)

func newReputation(userID string) *Reputation {
	return &Reputation{UserID: userID, TrustLevel: trustInitial}
}

func clamp(v int) int {
	if v < trustFloor {
		return trustFloor
	}
	if v > trustCeiling {
		return trustCeiling
	}
	return v
}

func (r *Reputation) adjust(delta int) {
	r.TrustLevel = clamp(r.TrustLevel + delta)
}

func (r *Reputation) recordCompleted(role Role) {
	r.CompletedCount++
	if role == RoleSeller {
		r.adjust(completedSellerDelta)
	} else {
		r.adjust(completedBuyerDelta)
	}
}

func (r *Reputation) recordRefunded(role Role) {
	r.RefundedCount++
	if role == RoleSeller {
		r.adjust(refundedSellerDelta)
	}
}

func (r *Reputation) recordDisputed() {
	r.DisputedCount++
	r.adjust(disputedDelta)
}
