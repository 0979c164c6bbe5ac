package hooks

import (
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/patch"
)

// Method is an installed point: the instrumented body plus the host's
// original, dispatched through the registry's handlers.
type Method struct {
	point    Point
	body     []patch.Instruction
	original Original
	registry *Registry
}

func (m *Method) Point() Point {
	return m.point
}

// Body returns the instrumented body. Callers must not modify it.
func (m *Method) Body() []patch.Instruction {
	return m.body
}

// Invoke runs c through the before handlers, the original and the after
// handlers. Only the original's own error is returned; handler failures are
// absorbed.
func (m *Method) Invoke(c *Call) error {
	r := m.registry
	c.Point = m.point
	c.Body = m.body
	c.Skipped = false

	r.count(m.point, func(s *Stats) { s.Calls++ })
	before, after := r.handlers(m.point)

	for _, e := range before {
		saved := c.Result
		var skip bool
		err := guard(func() error {
			var herr error
			skip, herr = e.reg.Before(c)
			return herr
		})
		if err != nil {
			c.Result = saved
			r.fault(m.point, e, err)
			continue
		}
		if !skip {
			continue
		}
		if !e.reg.Veto {
			c.Result = saved
			r.log.Warn("non-vetoing before handler asked to skip; ignored",
				log.String("point", string(m.point)),
				log.String("owner", e.reg.Owner),
			)
			continue
		}
		c.Skipped = true
		r.count(m.point, func(s *Stats) { s.Skips++ })
		return nil
	}

	if m.original != nil {
		if err := m.original(c); err != nil {
			return err
		}
	}

	for _, e := range after {
		saved := c.Result
		if err := guard(func() error { return e.reg.After(c) }); err != nil {
			c.Result = saved
			r.fault(m.point, e, err)
		}
	}
	return nil
}
