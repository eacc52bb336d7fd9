// Package marketplace syncs identified products to the third-party
// marketplace inventory API. All calls pass through a shared concurrency
// gate with bounded backoff and a circuit breaker; category and manufacturer
// lookups go through constructor-injected caches so tests can reset them
// deterministically.
package marketplace
