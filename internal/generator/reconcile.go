package generator

import "github.com/ailens/domain-audit/internal/audit"

// Reconcile recomputes the aggregate fields the model is not trusted to
// count. Coverage always reflects the readiness list, and based_on_pages
// always reflects the actual target-page sample, whatever the model
// claimed.
func Reconcile(p *audit.Payload, targetPages int) {
	var cov audit.CoverageScore
	for _, item := range p.Readiness {
		switch item.Status {
		case audit.StatusPresent:
			cov.Present++
		case audit.StatusWeak:
			cov.Weak++
		case audit.StatusMissing:
			cov.Missing++
		}
	}
	cov.Total = len(p.Readiness)
	p.Coverage = cov
	p.Interpretation.BasedOnPages = targetPages
}
