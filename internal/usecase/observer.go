package usecase

// AuthzObserver receives enforcement and cache telemetry. telemetry.AuthzMetrics implements it.
type AuthzObserver interface {
	ObserveDecision(result string)
	ObserveCacheLookup(outcome string)
	ObserveRepair(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string)    {}
func (nopObserver) ObserveCacheLookup(string) {}
func (nopObserver) ObserveRepair(bool)        {}

func observerOrNop(o AuthzObserver) AuthzObserver {
	if o == nil {
		return nopObserver{}
	}
	return o
}
