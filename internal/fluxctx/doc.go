// Package fluxctx implements the per-request application context.
//
// A Context owns one dispatcher instance and an ordered set of plugins, and
// hands out three capability views built from them:
//
//   - ActionContext is passed to every action function.
//   - ComponentContext is passed to the rendered component tree as the
//     "context" prop.
//   - StoreContext is passed to stores when the dispatcher creates them.
//
// Each view is built once, on first request, from its base capabilities and
// the contributions of every plugin that implements the matching hook, in
// registration order. Later contributions override earlier ones.
//
// A Context can be dehydrated into a snapshot.Snapshot and an equivalent
// Context can be restored from it with Rehydrate.
package fluxctx
