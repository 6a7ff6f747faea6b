// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"strings"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	vectorSearchTotal     *expvar.Int
	vectorSearchFailures  *expvar.Int
	vectorSearchLatencyMS *expvar.Int

	embedTotal         *expvar.Int
	embedFallbackTotal *expvar.Int

	lexicalSearchTotal *expvar.Int
	filterScanTotal    *expvar.Int

	ingestBatchTotal *expvar.Map
	ingestDocsTotal  *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		vectorSearchTotal = expvar.NewInt("insights_vector_search_total")
		vectorSearchFailures = expvar.NewInt("insights_vector_search_failures")
		vectorSearchLatencyMS = expvar.NewInt("insights_vector_search_latency_ms")

		embedTotal = expvar.NewInt("insights_embed_total")
		embedFallbackTotal = expvar.NewInt("insights_embed_fallback_total")

		lexicalSearchTotal = expvar.NewInt("insights_lexical_search_total")
		filterScanTotal = expvar.NewInt("insights_filter_scan_total")

		ingestBatchTotal = expvar.NewMap("insights_ingest_batches_total")
		ingestDocsTotal = expvar.NewInt("insights_ingest_docs_total")
	})
}

// RecordVectorSearch tracks a round trip to the vector index.
func RecordVectorSearch(failed bool, duration time.Duration) {
	ensureInit()
	vectorSearchTotal.Add(1)
	if failed {
		vectorSearchFailures.Add(1)
	}
	if duration > 0 {
		vectorSearchLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordEmbedding tracks an embedding request, distinguishing the
// deterministic fallback path from remote calls.
func RecordEmbedding(fallback bool) {
	ensureInit()
	embedTotal.Add(1)
	if fallback {
		embedFallbackTotal.Add(1)
	}
}

// RecordLexicalSearch tracks a search answered by the in-memory corpus.
func RecordLexicalSearch() {
	ensureInit()
	lexicalSearchTotal.Add(1)
}

// RecordFilterScan tracks a filter-mode listing answered without ranking.
func RecordFilterScan() {
	ensureInit()
	filterScanTotal.Add(1)
}

// RecordIngestBatch tracks one upserted ingestion batch.
func RecordIngestBatch(kind string, docs int) {
	ensureInit()
	if docs <= 0 {
		return
	}
	key := strings.TrimSpace(strings.ToLower(kind))
	if key == "" {
		key = "generic"
	}
	ingestBatchTotal.Add(key, 1)
	ingestDocsTotal.Add(int64(docs))
}
