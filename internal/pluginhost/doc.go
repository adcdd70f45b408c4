// Package pluginhost loads a fixed set of compiled-in Plugin values in
// dependency order and registers each onto a shared hooks.Registry
// (SPEC_FULL.md §6.9, elaborating spec.md §9's "Dynamic plugin loading").
// OrgConsistency, Trash, and AuthzPerBranch are themselves Plugin
// implementations loaded through this mechanism — there is no
// special-cased core/plugin distinction at runtime. Dynamic .so loading is
// out of scope for a single static binary; plugins.yaml only controls
// which of the compiled-in plugins are enabled and in what declared order.
package pluginhost
