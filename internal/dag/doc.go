// Package dag models the dependency graph of rule instantiations and builds
// it by backward resolution from requested target files. Graph mutation after
// the initial build happens only through Builder.Reevaluate, driven by the
// executor's coordinating loop when a checkpoint completes.
package dag
