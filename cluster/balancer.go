package cluster

// Balancer is a sticky-session policy group.
type Balancer struct {
	Name string

	StickySession       bool
	StickySessionCookie string
	StickySessionPath   string
	StickySessionRemove bool
	StickySessionForce  bool

	Timeout     int
	MaxAttempts int
}

// DefaultBalancer returns a Balancer row carrying CONFIG's documented
// defaults: sticky on + forced, cookie JSESSIONID, path jsessionid,
// max attempts 1.
func DefaultBalancer(name string) *Balancer {
	return &Balancer{
		Name:                name,
		StickySession:       true,
		StickySessionCookie: "JSESSIONID",
		StickySessionPath:   "jsessionid",
		StickySessionForce:  true,
		MaxAttempts:         1,
	}
}
