package recurring

// Mode selects which view of a line item's price the collaborating resolvers
// return during a calculation pass. Exactly one mode is active at any instant
// within a cycle.
type Mode string

const (
	// ModeNone is the initial/normal pass.
	ModeNone Mode = "none"
	// ModeCombinedTotal prices items as sign-up fee plus first recurring amount.
	ModeCombinedTotal Mode = "combined_total"
	// ModeSignUpFeeTotal prices items as sign-up fee only; no shipping applies.
	ModeSignUpFeeTotal Mode = "sign_up_fee_total"
	// ModeRecurringTotal is a cohort's own renewal pass.
	ModeRecurringTotal Mode = "recurring_total"
	// ModeFreeTrialTotal is the initial pass for a cart where a trial exists
	// but no sign-up fee; no shipping applies.
	ModeFreeTrialTotal Mode = "free_trial_total"
)

// noCohort is the stack sentinel for "not inside any cohort pass".
const noCohort = "none"

// Valid reports whether m is a known calculation mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeCombinedTotal, ModeSignUpFeeTotal, ModeRecurringTotal, ModeFreeTrialTotal:
		return true
	}
	return false
}
