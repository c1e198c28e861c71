package workflow

import (
	"fmt"

	"supportconsole/internal/cluster"
	"supportconsole/internal/config"

	"github.com/google/uuid"
)

// Service names an internal backend reachable only from inside the cluster.
type Service string

const (
	AccountManager Service = "trading-account-manager"
	Watcher        Service = "trading-account-watcher"
	OrderService   Service = "order"
)

// URLResolver returns the base URL of svc in env.
type URLResolver func(svc Service, env config.Environment) string

// ServiceURL is the default URLResolver: http://<env>-<svc>.<env>.svc.
func ServiceURL(svc Service, env config.Environment) string {
	return fmt.Sprintf("http://%s-%s.%s.svc", env, svc, env)
}

// Endpoint is one HTTP call performed from inside a job.
type Endpoint struct {
	Method string
	URL    string
}

func createAccountEndpoint(base string, orderID uuid.UUID, phase int) Endpoint {
	return Endpoint{Method: "POST", URL: fmt.Sprintf("%s/account?order_uuid=%s&challenge_phase=%d", base, orderID, phase)}
}

func simulateFundedEndpoint(base string, accountID uuid.UUID) Endpoint {
	return Endpoint{Method: "GET", URL: base + "/simulate/funded/" + accountID.String()}
}

func processActivationEndpoint(base string, activationID uuid.UUID) Endpoint {
	return Endpoint{Method: "POST", URL: base + "/internal/funded-activation/" + activationID.String() + "/process"}
}

// CurlCommand wraps ep in a shell script that prints the response followed by
// an HTTP_CODE line and exits non-zero unless the status is 2xx.
func CurlCommand(ep Endpoint) []string {
	script := fmt.Sprintf(
		`RESP=$(curl -s -X %s -w '\nHTTP_CODE:%%{http_code}' "%s"); echo "$RESP"; echo "$RESP" | grep -q 'HTTP_CODE:2' || exit 1`,
		ep.Method, ep.URL)
	return []string{"/bin/sh", "-c", script}
}

// Job name prefixes, one per kind of remote step.
const (
	prefixCreateAccount     = "support-create-ta"
	prefixSimulateFunded    = "support-simulate-funded"
	prefixProcessActivation = "support-process-activation"
	prefixForcePhase        = "support-force-phase"
	prefixForceFunded       = "support-force-funded"
)

func (o *Orchestrator) jobSpec(prefix string, ep Endpoint) cluster.JobSpec {
	return cluster.JobSpec{
		Name:      cluster.NewJobName(prefix),
		Namespace: o.namespace,
		Image:     o.image,
		Command:   CurlCommand(ep),
	}
}
