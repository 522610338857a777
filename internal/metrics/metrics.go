package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_reconciliation_ticks_total",
		Help: "Total number of reconciliation ticks executed",
	})
	ticksSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_reconciliation_ticks_skipped_total",
		Help: "Total number of ticks skipped because the system is flagged compromised",
	})
	threatsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_threats_processed_total",
		Help: "Total number of per-threat state machine evaluations",
	})
	workflowsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_workflows_dispatched_total",
		Help: "Total number of workflows handed to the enforcement system",
	})
	complianceVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_compliance_verdicts_total",
		Help: "Total compliance validation verdicts by result",
	}, []string{"result"})
	emulationsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_emulations_completed_total",
		Help: "Total number of digital-twin emulation jobs completed",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(ticksTotal, ticksSkipped, threatsProcessed,
		workflowsDispatched, complianceVerdicts, emulationsCompleted)
}

// IncTick increments the executed ticks counter.
func IncTick() { ticksTotal.Inc() }

// IncTickSkipped increments the skipped ticks counter.
func IncTickSkipped() { ticksSkipped.Inc() }

// IncThreatProcessed increments the per-threat evaluations counter.
func IncThreatProcessed() { threatsProcessed.Inc() }

// IncWorkflowDispatched increments the dispatched workflows counter.
func IncWorkflowDispatched() { workflowsDispatched.Inc() }

// IncComplianceVerdict counts one validation result ("valid", "invalid", "partial").
func IncComplianceVerdict(result string) { complianceVerdicts.WithLabelValues(result).Inc() }

// IncEmulationCompleted increments the completed emulation jobs counter.
func IncEmulationCompleted() { emulationsCompleted.Inc() }
