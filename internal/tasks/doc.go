// Package tasks runs clone and seed operations against X-Series accounts with real-time progress reporting.
//
// # Core Operations
//
//  1. [CloneEngine.Clone] : copy one account into another
//     - Checks the destination retailer (tax mode decides which source price is used)
//     - Walks each requested collection in type order: variant attributes, products, customers
//     - Transforms each record and resolves brands, suppliers and attributes by name
//     - Creates the record, then copies stock levels to outlets with the same name
//
//  2. [Seeder.Seed] : create producer-supplied payloads directly
//     - Bounded concurrent creates through an errgroup
//     - Results keep the order of the input payloads
//
// # Failure Handling
//
// Every entity contributes a [models.CloneResult]. A failed entity never stops the run on its
// own: authentication failures, exhausted rate-limit retries, cancellation and a streak of
// transport failures do. An aborted run still returns its summary.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct carries the phase, step counters, a message and the result it
// describes. Updates use select with default so a slow reader never stalls a run.
package tasks
