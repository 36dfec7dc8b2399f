package governor

import "time"

// Limits is the admission budget for one source. A zero or negative value
// disables that dimension: no window accounting when RequestsPerWindow or
// Window is unset, no concurrency cap when MaxConcurrent is unset, no
// spacing when MinInterval is unset.
type Limits struct {
	// RequestsPerWindow bounds admissions inside any rolling Window.
	RequestsPerWindow int `json:"requests_per_window"`
	// Window is the rolling interval RequestsPerWindow applies to.
	Window time.Duration `json:"window"`
	// MaxConcurrent bounds admitted-but-unreported calls.
	MaxConcurrent int `json:"max_concurrent"`
	// MinInterval is the minimum spacing between consecutive admissions.
	MinInterval time.Duration `json:"min_interval"`
}

// State represents the breaker state for a single source.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Policy configures the failure response shared by every source.
type Policy struct {
	// TripThreshold is the consecutive-failure count that opens the breaker.
	TripThreshold int
	// BaseBackoff seeds the exponential delay scheduled after a failure.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential delay. The throttle multiplier is
	// applied after the cap.
	MaxBackoff time.Duration
	// ThrottleFactor multiplies the delay when the reported failure carried
	// an explicit throttling status.
	ThrottleFactor int
	// WindowSlack pads waits on a full window so a woken caller lands
	// strictly outside it.
	WindowSlack time.Duration
	// OnStateChange is called on every breaker transition.
	OnStateChange func(source string, from, to State)
	// OnBackoff is called whenever a failure schedules a backoff deadline.
	OnBackoff func(source string, failures int, delay time.Duration, throttled bool)
}

// DefaultPolicy returns the production failure policy.
func DefaultPolicy() Policy {
	return Policy{
		TripThreshold:  5,
		BaseBackoff:    time.Second,
		MaxBackoff:     60 * time.Second,
		ThrottleFactor: 3,
		WindowSlack:    5 * time.Millisecond,
	}
}

// normalized fills unset fields from the defaults so a partially specified
// policy stays safe.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.TripThreshold <= 0 {
		p.TripThreshold = def.TripThreshold
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	if p.ThrottleFactor <= 0 {
		p.ThrottleFactor = def.ThrottleFactor
	}
	if p.WindowSlack <= 0 {
		p.WindowSlack = def.WindowSlack
	}
	return p
}

// delayFor computes the backoff scheduled after the given consecutive
// failure count: BaseBackoff doubled per failure, capped at MaxBackoff,
// then multiplied by ThrottleFactor when the upstream throttled explicitly.
func (p Policy) delayFor(failures int, throttled bool) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < failures && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if throttled {
		d *= time.Duration(p.ThrottleFactor)
	}
	return d
}
