// Package plugin provides the ordered plugin registry shared by contexts and
// applications.
//
// A Registry keys plugins by name and remembers registration order, so that
// every iteration (view construction, dehydration, rehydration) visits
// plugins deterministically. When two plugins contribute the same capability
// name to a view, the one registered later wins because it is applied later.
//
// Names are identities: a plugin without a name, or with a name that is
// already registered, is rejected at registration time.
//
//	reg := plugin.NewRegistry[fluxctx.Plugin]()
//	if err := reg.Add(dimensions.New(dims)); err != nil {
//	    return err
//	}
//	reg.Each(func(p fluxctx.Plugin) {
//	    // registration order
//	})
//
// The Lua runtime used by script plugins lives in the lua subpackage.
package plugin
