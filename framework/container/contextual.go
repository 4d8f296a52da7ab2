package container

// ContextualBuilder implements the fluent contextual binding API.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(...)
//	c.When("PhotoController").Needs("Filesystem").Give(func(c *container.Container) (any, error) {
//	    return filesystem.NewS3(), nil
//	})
type ContextualBuilder struct {
	container *Container
	concrete  string
	needs     string
}

// Needs specifies which abstract the concrete type depends on.
func (b *ContextualBuilder) Needs(abstract string) *ContextualBuilder {
	b.needs = abstract
	return b
}

// Give provides the factory used when the concrete key, while being built,
// resolves the needed abstract. The result is never cached.
func (b *ContextualBuilder) Give(factory Factory) {
	if factory == nil {
		panic("container: nil contextual factory for [" + b.concrete + "]")
	}

	c := b.container
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrozen()

	concrete, needs := c.canonical(b.concrete), c.canonical(b.needs)
	if _, ok := c.contextual[concrete]; !ok {
		c.contextual[concrete] = make(map[string]Factory)
	}
	c.contextual[concrete][needs] = factory
}

// GiveValue is a shorthand for Give when the value is a simple scalar or
// pre-built instance.
//
//	// Laravel: ->give('/tmp/photos')
//	c.When("PhotoController").Needs("storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(func(_ *Container) (any, error) { return value, nil })
}
