// Package handlers contains the reusable pieces of the HTTP surface:
// health checking and middleware.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddCheck("store_breaker", handlers.NewBreakerCheck(client.Breaker()))
//
// # Middleware
//
//	withTimeout := handlers.Timeout(15 * time.Second)(mux)
//
// The student list endpoint uses ETag and NotModified so that polling
// clients receive 304 while the collection is unchanged.
package handlers
