package platform

// Category is a platform category a device can be exposed under.
type Category string

// Platform categories. OnOffEvents is a pseudo-category: devices mapped to
// it raise button on/off events but get no entity from it.
const (
	Switch       Category = "switch"
	Light        Category = "light"
	BinarySensor Category = "binary_sensor"
	Climate      Category = "climate"
	Cover        Category = "cover"
	Fan          Category = "fan"
	OnOffEvents  Category = "on_off_events"
)

// entityCategories is sorted; Categories relies on it.
var entityCategories = []Category{BinarySensor, Climate, Cover, Fan, Light, Switch}

// Categories lists the entity platforms in sorted order. OnOffEvents is
// not included.
func Categories() []Category {
	out := make([]Category, len(entityCategories))
	copy(out, entityCategories)
	return out
}

// IsEntity reports whether c produces entities on the hosting platform.
func (c Category) IsEntity() bool {
	for _, e := range entityCategories {
		if c == e {
			return true
		}
	}
	return false
}

// String returns the category name.
func (c Category) String() string { return string(c) }
