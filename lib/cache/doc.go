// Package cache implements the synchronization layer between the request handlers of the
// bot and the remote document store. Every Dataset is an in-memory, read-through cache of
// one remote document with time-to-live, conditional re-fetch, debounced write-back, a
// circuit breaker and stale-on-error semantics.
//
// Key Components:
//
//   - Dataset: The cache of a single document. Get, Update and Modify are the consumer
//     operations; Refresh and FlushIfDue are the scheduling operations called by the
//     manager. Two semaphores (load and flush) serialize the remote calls of a dataset,
//     both are acquired with a short timeout (Config.LockTimeout) and a caller that cannot
//     get them simply continues with the cached document. A RWMutex guards the document
//     itself, so loads, flushes and consumer mutations can overlap safely.
//
//   - Schema: Describes the top level fields of a document. Normalization fills missing
//     fields (consulting legacy aliases first), resets fields of the wrong JSON type and
//     keeps unknown fields untouched.
//
//   - Manager: Registry of all datasets (backed by an xsync.MapOf), the entry point for
//     consumers addressing datasets by name, and the owner of the lifecycle operations
//     Initialize, OpportunisticFlush and FlushAll. It also owns the metrics.Set that exports
//     the counters of all datasets.
//
// Failure Semantics:
//
//	A failed fetch never replaces the cached document. If nothing was ever loaded the schema
//	defaults are served instead; they are only persisted when the remote reports that the
//	document does not exist and Config.BootstrapMissing is set. A failed write keeps the
//	dataset dirty. After Config.BreakerThreshold consecutive failures the dataset stops
//	contacting the remote for Config.BreakerCooldown.
//
// Scheduling:
//
//	There is no background goroutine. Write-back piggybacks on request traffic: the server
//	calls Manager.OpportunisticFlush before and after handling each webhook call, and
//	Manager.FlushAll on shutdown.
//
// Usage Example:
//
//	mgr := cache.NewManager(nil)
//	core, _ := mgr.Register(cache.Config{
//		Name:     "core",
//		Locator:  store.Locator{ID: gistID, Name: "10k_dog_core.json"},
//		Schema:   schema,
//		TTL:      60 * time.Second,
//		Debounce: 2500 * time.Millisecond,
//	}, documentStore)
//
//	_ = mgr.Initialize(ctx, 15*time.Second)
//	admins := core.Get(ctx, "admins")
//	core.Update(ctx, "admins", admins)
//	mgr.OpportunisticFlush(ctx)
package cache
