package alert

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nao1215/opsdesk/internal/prefs"
)

type fakePlayer struct {
	mu    sync.Mutex
	plays [][]byte
	err   error
}

func (p *fakePlayer) Play(_ context.Context, wav []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.plays = append(p.plays, wav)
	return nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

type fakeDesktop struct {
	mu        sync.Mutex
	perm      prefs.Permission
	grant     prefs.Permission
	requested int
	shown     []Notice
	err       error
}

func (d *fakeDesktop) Permission() prefs.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

func (d *fakeDesktop) RequestPermission(context.Context) (prefs.Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requested++
	d.perm = d.grant
	return d.perm, nil
}

func (d *fakeDesktop) Show(_ context.Context, n Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.shown = append(d.shown, n)
	return nil
}

type fakeBanner struct {
	mu    sync.Mutex
	shown []Notice
}

func (b *fakeBanner) Show(_ context.Context, n Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = append(b.shown, n)
	return nil
}

type fakePrompter struct {
	answer bool
	err    error
	asked  int
}

func (p *fakePrompter) Confirm(context.Context, string, string) (bool, error) {
	p.asked++
	return p.answer, p.err
}

type fakeCaller struct {
	method string
	args   []any
	err    error
}

func (c *fakeCaller) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	c.method = method
	c.args = args
	return &dbus.Call{Err: c.err, Body: []any{uint32(1)}}
}
