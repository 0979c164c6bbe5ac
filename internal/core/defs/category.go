package defs

// MiscCategory is the fallback display category for buildings.
const MiscCategory = "Misc"

// Category is a display category and the types listed under it.
type Category struct {
	Name    string
	Members []string
}

// Has reports whether name is listed.
func (c *Category) Has(name string) bool {
	for _, m := range c.Members {
		if m == name {
			return true
		}
	}
	return false
}

// Categories is the display category table.
type Categories struct {
	byName map[string]*Category
	order  []string
}

// NewCategories builds a table holding the given categories plus Misc.
func NewCategories(names ...string) *Categories {
	c := &Categories{byName: make(map[string]*Category)}
	c.Ensure(MiscCategory)
	for _, name := range names {
		c.Ensure(name)
	}
	return c
}

func (c *Categories) Get(name string) (*Category, bool) {
	cat, ok := c.byName[name]
	return cat, ok
}

// Ensure returns the named category, creating it if needed.
func (c *Categories) Ensure(name string) *Category {
	if cat, ok := c.byName[name]; ok {
		return cat
	}
	cat := &Category{Name: name}
	c.byName[name] = cat
	c.order = append(c.order, name)
	return cat
}

// AddMember lists defName under category once. It reports whether the
// member was added.
func (c *Categories) AddMember(category, defName string) bool {
	cat := c.Ensure(category)
	if cat.Has(defName) {
		return false
	}
	cat.Members = append(cat.Members, defName)
	return true
}

// Names lists categories in creation order.
func (c *Categories) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
