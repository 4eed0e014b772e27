package schema

// Field describes one catalog column.
type Field struct {
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Length    int    `json:"length"`
	Precision int    `json:"precision"`
}

// Catalog is the ordered field list. Names are unique and keep their first-seen
// position; fields change only by widening.
type Catalog struct {
	fields []Field
	index  map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Len returns the number of fields.
func (c *Catalog) Len() int {
	return len(c.fields)
}

// Index returns the position of name, or -1.
func (c *Catalog) Index(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Field returns the field called name.
func (c *Catalog) Field(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Fields returns a copy of the fields in catalog order.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Names returns the field names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Clone returns an independent copy.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		fields: c.Fields(),
		index:  make(map[string]int, len(c.index)),
	}
	for k, v := range c.index {
		out.index[k] = v
	}
	return out
}

// Materialize returns one value per catalog field, in catalog order. Missing
// attributes become the null of the field type and present ones are coerced to it.
func (c *Catalog) Materialize(attrs map[string]Value) []Value {
	row := make([]Value, len(c.fields))
	for i, f := range c.fields {
		v, ok := attrs[f.Name]
		if !ok {
			row[i] = Null(f.Type)
			continue
		}
		row[i] = v.Coerce(f.Type)
	}
	return row
}

func (c *Catalog) add(f Field) {
	c.index[f.Name] = len(c.fields)
	c.fields = append(c.fields, f)
}

func (c *Catalog) set(f Field) {
	c.fields[c.index[f.Name]] = f
}
