package replay

import (
	"github.com/watchtree/watchtree/pkg/config"
	"github.com/watchtree/watchtree/pkg/memory"
	"github.com/watchtree/watchtree/pkg/symgroup"
)

// Target is an opened snapshot: the symbol context of its stack frame and
// its memory.
type Target struct {
	conf *config.Config
	snap *Snapshot
	ctx  *symgroup.Context
	mem  memory.Reader
}

// Open loads the snapshot at path and builds the symbol context over it
// as configured by conf, which may be nil.
func Open(path string, conf *config.Config) (*Target, error) {
	t := &Target{conf: conf}
	if err := t.open(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Target) open(path string) error {
	s, err := Load(path)
	if err != nil {
		return err
	}
	ctx, err := symgroup.NewWithOptions(t.conf.GetRootPrefix(), s.Group(), symgroup.Options{
		Delimiter:    t.conf.GetNameDelimiter(),
		MaxStringLen: t.conf.GetMaxStringLen(),
	})
	if err != nil {
		return err
	}
	var mem memory.Reader = s.Memory()
	if pages := t.conf.GetMemoryCachePages(); pages > 0 {
		pc, err := memory.NewPageCache(mem, pages)
		if err != nil {
			ctx.Close()
			return err
		}
		mem = pc
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	t.snap, t.ctx, t.mem = s, ctx, mem
	return nil
}

// Reload reads the snapshot file again, dropping all expansions. On
// failure the target is left unchanged.
func (t *Target) Reload() error {
	return t.open(t.snap.Path())
}

// Snapshot returns the loaded snapshot.
func (t *Target) Snapshot() *Snapshot {
	return t.snap
}

// Context returns the symbol context of the snapshot's frame.
func (t *Target) Context() *symgroup.Context {
	return t.ctx
}

// Memory returns the target memory.
func (t *Target) Memory() memory.Reader {
	return t.mem
}

// Flush drops cached memory, it must be called after writing to the
// target.
func (t *Target) Flush() {
	if pc, ok := t.mem.(*memory.PageCache); ok {
		pc.Flush()
	}
}

// Close releases the symbol context.
func (t *Target) Close() {
	t.ctx.Close()
}
