// Component is the lifecycle every long-lived piece of the server follows:
// construct, configure, prepare, run as a goroutine, shut down.
//
// Splitting the interface from an embeddable Component_ base lets every
// subsystem share the fan-out shutdown bookkeeping below without
// duplicating it, while still letting OnConfigure/OnPrepare/OnShutdown be
// overridden per subsystem.

package engine

import "sync"

// Component is the lifecycle interface for subsystems of the
// ServerContext. No engine type implements it at present; ServerContext
// embeds Component_ only for its name.
type Component interface {
	Name() string
	OnConfigure(cfg *Config)
	OnPrepare()
	OnShutdown()
}

// Component_ is the parent embedded by all components. It provides the
// sub-component wait group used to implement ordered, fan-out shutdown:
// a parent calls SubsAddn/IncSub before starting each sub-component's
// goroutine and WaitSubs blocks until every one of them has called DecSub.
type Component_ struct {
	name string
	subs sync.WaitGroup
}

func (c *Component_) MakeComp(name string) { c.name = name }
func (c *Component_) Name() string         { return c.name }

func (c *Component_) SubsAddn(n int) { c.subs.Add(n) }
func (c *Component_) IncSub()        { c.subs.Add(1) }
func (c *Component_) DecSub()        { c.subs.Done() }
func (c *Component_) WaitSubs()      { c.subs.Wait() }

// compList and compDict are tiny helper collection types used to fan
// lifecycle calls out to every sub-component.
type compList[T Component] []T

func (l compList[T]) walk(method func(T)) {
	for _, component := range l {
		method(component)
	}
}
func (l compList[T]) goWalk(method func(T)) {
	for _, component := range l {
		go method(component)
	}
}

type compDict[T Component] map[string]T

func (d compDict[T]) walk(method func(T)) {
	for _, component := range d {
		method(component)
	}
}
func (d compDict[T]) goWalk(method func(T)) {
	for _, component := range d {
		go method(component)
	}
}
