package bind_group_provider

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithGroup sets the @group index the provider is bound at. Defaults to 0.
//
// Parameters:
//   - group: the group index
//
// Returns:
//   - BindGroupProviderOption: a function that sets the group index for this provider
func WithGroup(group uint32) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.group = group
	}
}

// WithBinding adds a buffer binding to this provider.
//
// Parameters:
//   - b: the binding to add
//
// Returns:
//   - BindGroupProviderOption: a function that adds the binding to this provider
func WithBinding(b Binding) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindings = append(p.bindings, b)
	}
}

// WithBindings adds several buffer bindings to this provider.
//
// Parameters:
//   - bindings: the bindings to add
//
// Returns:
//   - BindGroupProviderOption: a function that adds the bindings to this provider
func WithBindings(bindings ...Binding) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindings = append(p.bindings, bindings...)
	}
}
