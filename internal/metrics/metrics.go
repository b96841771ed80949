// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint served by the API.
package metrics

import "expvar"

// Directory counters.
var (
	ProfessorsUpserted  = expvar.NewInt("facultyhub_professors_upserted_total")
	BookkeepingFailures = expvar.NewInt("facultyhub_bookkeeping_failures_total")
	ProfessorsDeleted   = expvar.NewInt("facultyhub_professors_deleted_total")
	DepartmentsDeleted  = expvar.NewInt("facultyhub_departments_deleted_total")
	AtomicCascades      = expvar.NewInt("facultyhub_cascades_atomic_total")
	BestEffortCascades  = expvar.NewInt("facultyhub_cascades_best_effort_total")
)

// News counters.
var (
	NewsFetchRuns     = expvar.NewInt("facultyhub_news_fetch_runs_total")
	NewsFetchFailures = expvar.NewInt("facultyhub_news_fetch_failures_total")
	NewsInserted      = expvar.NewInt("facultyhub_news_inserted_total")
	NewsExpired       = expvar.NewInt("facultyhub_news_expired_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Add increments the given counter by n.
func Add(counter *expvar.Int, n int) { counter.Add(int64(n)) }
