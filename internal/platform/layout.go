package platform

import (
	"sort"

	"github.com/nerrad567/insteon-bridge/internal/device"
)

// Layout returns the groups a device of type t carries, ordered by
// number. Groups under Light are dimmable. Each group is named after
// the first entity category that covers it, or "button" when only
// events reference it.
func Layout(t device.Type) []device.Group {
	byNumber := make(map[int]*device.Group)

	for _, c := range PlatformsFor(t) {
		for _, n := range GroupsFor(t, c) {
			g, ok := byNumber[n]
			if !ok {
				g = &device.Group{Number: n, Name: "button"}
				byNumber[n] = g
			}
			if c.IsEntity() && g.Name == "button" {
				g.Name = string(c)
			}
			if c == Light {
				g.Dimmable = true
			}
		}
	}

	out := make([]device.Group, 0, len(byNumber))
	for _, g := range byNumber {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ApplyLayout rebuilds d.Groups for its current type, keeping the last
// value and steps of groups that survive.
func ApplyLayout(d *device.Device) {
	old := make(map[int]device.Group, len(d.Groups))
	for _, g := range d.Groups {
		old[g.Number] = g
	}

	groups := Layout(d.Type)
	for i := range groups {
		if prev, ok := old[groups[i].Number]; ok {
			groups[i].Value = prev.Value
			if groups[i].Dimmable {
				groups[i].Steps = prev.Steps
			}
		}
	}
	d.Groups = groups
}
