package saga

// Context is the mutable state shared by every step of a single saga run.
// Writes made by a step are visible to all later steps and to every
// compensation. A Context belongs to exactly one run and one goroutine;
// it must never be reused across runs.
type Context struct {
	values map[string]interface{}
}

// NewContext creates an empty saga context
func NewContext() *Context {
	return &Context{values: make(map[string]interface{})}
}

// Set stores a value under key
func (c *Context) Set(key string, value interface{}) {
	c.values[key] = value
}

// Get returns the value stored under key
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the string stored under key, or "" if absent
func (c *Context) GetString(key string) string {
	if v, ok := c.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Delete removes a key from the context
func (c *Context) Delete(key string) {
	delete(c.values, key)
}

// Has reports whether key is present
func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns all keys currently stored
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}
