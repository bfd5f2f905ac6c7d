package firmware

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version is reported by $I.
const Version = "[VER:1.1f.probeguard]"

func (c *Controller) write(s string) {
	if c.out == nil {
		return
	}
	io.WriteString(c.out, s+"\r\n")
}

// execSystem runs a $ command.
func (c *Controller) execSystem(line string) error {
	cmd := strings.ToUpper(strings.TrimPrefix(line, "$"))
	switch cmd {
	case "I":
		c.write(Version)
		if fn := c.Hooks.OnReportOptions.Load(); fn != nil {
			fn(false)
		}
		return nil
	case "C":
		switch c.State() {
		case StateIdle:
			c.setState(StateCheckMode)
			c.message("Enabled", MessagePlain)
		case StateCheckMode:
			c.setState(StateIdle)
			c.message("Disabled", MessagePlain)
		default:
			return ErrLocked
		}
		return nil
	case "X":
		if c.State() == StateAlarm {
			c.setState(StateIdle)
			c.message("Caution: Unlocked", MessagePlain)
		}
		return nil
	case "$":
		for _, g := range c.groups {
			for _, d := range g.Details {
				c.write(fmt.Sprintf("$%d=%d", d.ID, d.Get()))
			}
		}
		return nil
	case "RST=$":
		for _, g := range c.groups {
			if g.Restore != nil {
				g.Restore()
			}
		}
		return nil
	}

	id, val, hasVal := strings.Cut(cmd, "=")
	n, err := strconv.ParseUint(id, 10, 16)
	if err != nil {
		return fmt.Errorf("%s: %w", line, ErrUnsupported)
	}
	g, d := c.findSetting(Setting(n))
	if d == nil {
		return fmt.Errorf("$%d: %w", n, ErrUnsupported)
	}
	if !hasVal {
		c.write(fmt.Sprintf("$%d=%d", d.ID, d.Get()))
		return nil
	}
	if c.State() == StateAlarm {
		return ErrLocked
	}

	v, err := strconv.ParseUint(strings.TrimSpace(val), 10, 16)
	if err != nil {
		return fmt.Errorf("$%d: %w", n, ErrSettingValue)
	}
	return c.WriteSetting(g, d, uint(v))
}

func (c *Controller) findSetting(id Setting) (*SettingGroup, *SettingDetail) {
	for _, g := range c.groups {
		if d, ok := g.Detail(id); ok {
			return g, d
		}
	}
	return nil, nil
}

// WriteSetting validates and stores a setting value, then saves its group.
func (c *Controller) WriteSetting(g *SettingGroup, d *SettingDetail, v uint) error {
	err := d.Validate(v)
	if err != nil {
		return fmt.Errorf("$%d=%d: %w", d.ID, v, err)
	}
	d.Set(v)
	if g.Save != nil {
		g.Save()
	}
	return nil
}

// Setting returns the current value of a plugin setting.
func (c *Controller) Setting(id Setting) (uint, bool) {
	_, d := c.findSetting(id)
	if d == nil {
		return 0, false
	}
	return d.Get(), true
}

// SettingGroups returns the registered plugin settings.
func (c *Controller) SettingGroups() []*SettingGroup {
	return append([]*SettingGroup(nil), c.groups...)
}
