// Package account tracks which venue account is the active execution
// target. Market data comes from a fixed feed and is never affected by the
// execution target switching.
package account

import (
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/schema"
	"main/pkg/exception"
)

// SwitchListener is notified after the active execution target changes.
// The order controller registers here to orphan the old account's orders.
type SwitchListener func(oldAccount, newAccount schema.AccountID)

// Context is the process-wide record of the active execution target.
// Constructed once at startup and passed to every dependent component.
type Context struct {
	mu        sync.RWMutex
	adapters  map[schema.Mode]*adapter.ExecutionAdapter
	connected map[schema.Mode]bool
	active    schema.Mode
	listener  SwitchListener
}

// NewContext creates an empty context. Register at least one adapter and
// call SetMode before routing orders.
func NewContext() *Context {
	return &Context{
		adapters:  make(map[schema.Mode]*adapter.ExecutionAdapter),
		connected: make(map[schema.Mode]bool),
	}
}

// Register binds an adapter to its execution mode.
func (c *Context) Register(mode schema.Mode, a *adapter.ExecutionAdapter) {
	c.mu.Lock()
	c.adapters[mode] = a
	c.mu.Unlock()
}

// OnSwitch registers the switch listener. Only one listener is supported;
// the order controller owns it.
func (c *Context) OnSwitch(l SwitchListener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// SetConnected updates a venue's connection flag.
func (c *Context) SetConnected(mode schema.Mode, connected bool) {
	c.mu.Lock()
	c.connected[mode] = connected
	c.mu.Unlock()
}

// Connected reports a venue's connection flag.
func (c *Context) Connected(mode schema.Mode) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected[mode]
}

// ActiveMode returns the current execution mode.
func (c *Context) ActiveMode() schema.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Active returns the adapter for the current execution target.
func (c *Context) Active() (*adapter.ExecutionAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapters[c.active]
	if !ok {
		return nil, exception.ErrAccountUnknownMode
	}
	return a, nil
}

// Adapter returns the adapter registered for the given mode, whether or not
// it is active. Cancelling orphaned orders goes through here.
func (c *Context) Adapter(mode schema.Mode) (*adapter.ExecutionAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapters[mode]
	if !ok {
		return nil, exception.ErrAccountUnknownMode
	}
	return a, nil
}

// AdapterFor returns the adapter whose construction-time account matches.
func (c *Context) AdapterFor(accountID schema.AccountID) (*adapter.ExecutionAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.adapters {
		if a.Account() == accountID {
			return a, nil
		}
	}
	return nil, exception.ErrAccountUnknownMode
}

// SetMode switches the active execution target. It logs the transition,
// warns without blocking when the target venue's connection flag is down,
// and notifies the switch listener. It never cancels or migrates orders; a
// switch to an unregistered mode fails and leaves the old target active.
func (c *Context) SetMode(newMode schema.Mode) error {
	c.mu.Lock()
	target, ok := c.adapters[newMode]
	if !ok {
		c.mu.Unlock()
		return errors.Wrap(exception.ErrAccountUnknownMode, newMode.String())
	}

	oldMode := c.active
	if oldMode == newMode {
		c.mu.Unlock()
		return nil
	}

	var oldAccount schema.AccountID
	if old, ok := c.adapters[oldMode]; ok {
		oldAccount = old.Account()
	}
	newAccount := target.Account()

	if !c.connected[newMode] {
		logs.Warnf("switching to %s while its connection flag is down", newMode)
	}
	c.active = newMode
	listener := c.listener
	c.mu.Unlock()

	logs.Infof("execution target switched: %s -> %s (account %s -> %s)", oldMode, newMode, oldAccount, newAccount)
	if listener != nil && oldAccount != "" {
		listener(oldAccount, newAccount)
	}
	return nil
}
